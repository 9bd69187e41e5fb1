package sqlstore

import (
	"context"
	"database/sql"

	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/model"
)

const noteColumns = `id, snippet_id, user_id, line_number, content, created_at, updated_at`

// ListNotes returns the user's notes on a snippet ordered by line number.
func (db *DB) ListNotes(ctx context.Context, snippetID, userID string) ([]model.LineNote, error) {
	rows, err := db.query(ctx, db.conn,
		`SELECT `+noteColumns+`
		 FROM line_notes
		 WHERE snippet_id = ? AND user_id = ?
		 ORDER BY line_number ASC`,
		snippetID, userID,
	)
	if err != nil {
		return nil, apperror.StoreUnavailable("listing notes", err)
	}
	defer rows.Close()

	notes := make([]model.LineNote, 0)
	for rows.Next() {
		var n model.LineNote
		if err := rows.Scan(
			&n.ID, &n.SnippetID, &n.UserID, &n.LineNumber, &n.Content,
			&n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, apperror.StoreUnavailable("scanning note row", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreUnavailable("iterating notes", err)
	}
	return notes, nil
}

// UpsertNote creates the note for (snippet, line, user) or overwrites its
// content.
//
// WHY ON CONFLICT INSTEAD OF SELECT-THEN-INSERT?
// Two concurrent saves of the same line would both see "no note yet" and
// both insert. The unique index on (snippet_id, line_number, user_id) plus
// ON CONFLICT makes the database pick exactly one winner; the loser turns
// into an update of the winner's row.
//
// RETURNING id yields the existing row's id on conflict, so comparing it with
// the freshly generated id tells us which branch ran.
func (db *DB) UpsertNote(ctx context.Context, snippetID string, lineNumber int, content, userID string) (model.UpsertResult, error) {
	var result model.UpsertResult
	newID := xid.New().String()
	ts := now()

	err := db.withTx(ctx, "saving note", func(tx *sql.Tx) error {
		ok, err := db.ownsRow(ctx, tx, "snippets", snippetID, userID)
		if err != nil {
			return apperror.StoreUnavailable("checking snippet", err)
		}
		if !ok {
			return apperror.NotFound("snippet", snippetID)
		}

		var id string
		if err := db.queryRow(ctx, tx,
			`INSERT INTO line_notes (`+noteColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (snippet_id, line_number, user_id) DO UPDATE SET
				content    = excluded.content,
				updated_at = excluded.updated_at
			 RETURNING id`,
			newID, snippetID, userID, lineNumber, content, ts, ts,
		).Scan(&id); err != nil {
			return apperror.StoreUnavailable("saving note", err)
		}

		result.ID = id
		if id == newID {
			result.Outcome = model.UpsertCreated
		} else {
			result.Outcome = model.UpsertUpdated
		}
		return nil
	})
	if err != nil {
		return model.UpsertResult{}, err
	}
	return result, nil
}

// DeleteNote removes one of the user's notes. Foreign or missing ids are a no-op.
func (db *DB) DeleteNote(ctx context.Context, id, userID string) error {
	if _, err := db.exec(ctx, db.conn,
		`DELETE FROM line_notes WHERE id = ? AND user_id = ?`, id, userID,
	); err != nil {
		return apperror.StoreUnavailable("deleting note", err)
	}
	return nil
}
