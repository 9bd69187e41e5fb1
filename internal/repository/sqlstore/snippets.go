package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/model"
)

const snippetColumns = `id, user_id, project_id, title, code, language, description,
	is_favorite, created_at, updated_at`

// ListSnippets returns the user's snippets, most recently updated first.
// A non-empty projectID narrows the list to that project.
func (db *DB) ListSnippets(ctx context.Context, userID, projectID string) ([]model.Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE user_id = ?`
	args := []any{userID}
	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	return db.selectSnippets(ctx, "listing snippets", query, args...)
}

// SearchSnippets finds the user's snippets whose title, code or description
// contains query, ignoring case. Wildcards in query match literally.
func (db *DB) SearchSnippets(ctx context.Context, userID, query, projectID string) ([]model.Snippet, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	lower := db.lowerFunc()
	q := `SELECT ` + snippetColumns + `
		FROM snippets
		WHERE user_id = ?
		  AND (` + lower + `(title) LIKE ? ESCAPE '\'
		    OR ` + lower + `(code) LIKE ? ESCAPE '\'
		    OR ` + lower + `(description) LIKE ? ESCAPE '\')`
	args := []any{userID, pattern, pattern, pattern}
	if projectID != "" {
		q += ` AND project_id = ?`
		args = append(args, projectID)
	}
	q += ` ORDER BY updated_at DESC, id DESC`

	return db.selectSnippets(ctx, "searching snippets", q, args...)
}

func (db *DB) selectSnippets(ctx context.Context, op, query string, args ...any) ([]model.Snippet, error) {
	rows, err := db.query(ctx, db.conn, query, args...)
	if err != nil {
		return nil, apperror.StoreUnavailable(op, err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, apperror.StoreUnavailable(op, err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreUnavailable(op, err)
	}
	return snippets, nil
}

func (db *DB) GetSnippet(ctx context.Context, id, userID string) (*model.Snippet, error) {
	s, err := scanSnippet(db.queryRow(ctx, db.conn,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("snippet", id)
	}
	if err != nil {
		return nil, apperror.StoreUnavailable("getting snippet", err)
	}
	return s, nil
}

// CreateSnippet inserts the snippet. When ProjectID is set the project must
// belong to the same user; the check and the insert share a transaction.
func (db *DB) CreateSnippet(ctx context.Context, snippet *model.Snippet) error {
	ts := now()
	snippet.ID = xid.New().String()
	snippet.CreatedAt = ts
	snippet.UpdatedAt = ts

	return db.withTx(ctx, "creating snippet", func(tx *sql.Tx) error {
		if err := db.requireProject(ctx, tx, snippet.ProjectID, snippet.UserID); err != nil {
			return err
		}
		if _, err := db.exec(ctx, tx,
			`INSERT INTO snippets (`+snippetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snippet.ID, snippet.UserID, nullString(snippet.ProjectID), snippet.Title,
			snippet.Code, snippet.Language, snippet.Description, snippet.IsFavorite,
			snippet.CreatedAt, snippet.UpdatedAt,
		); err != nil {
			return apperror.StoreUnavailable("creating snippet", err)
		}
		return nil
	})
}

// UpdateSnippet applies the set fields of patch and bumps updated_at. Moving
// a snippet into a project requires owning that project.
func (db *DB) UpdateSnippet(ctx context.Context, id, userID string, patch model.SnippetPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	var set setList
	if patch.Title.Set {
		set.add("title", patch.Title.Value)
	}
	if patch.Code.Set {
		set.add("code", patch.Code.Value)
	}
	if patch.Language.Set {
		set.add("language", patch.Language.Value)
	}
	if patch.Description.Set {
		set.add("description", patch.Description.Value)
	}
	if patch.ProjectID.Set {
		set.add("project_id", nullString(patch.ProjectID.Value))
	}
	if patch.IsFavorite.Set {
		set.add("is_favorite", patch.IsFavorite.Value)
	}
	set.add("updated_at", now())

	return db.withTx(ctx, "updating snippet", func(tx *sql.Tx) error {
		if patch.ProjectID.Set {
			if err := db.requireProject(ctx, tx, patch.ProjectID.Value, userID); err != nil {
				return err
			}
		}
		if err := db.update(ctx, tx, "snippets", id, userID, &set); err != nil {
			return apperror.StoreUnavailable("updating snippet", err)
		}
		return nil
	})
}

// DeleteSnippet removes the snippet, its line notes and its assistant history.
func (db *DB) DeleteSnippet(ctx context.Context, id, userID string) error {
	return db.runCascade(ctx, "deleting snippet", snippetCascade, id, userID)
}

// requireProject checks that a (possibly nil) project reference points at a
// project owned by userID.
func (db *DB) requireProject(ctx context.Context, q querier, projectID *string, userID string) error {
	if projectID == nil {
		return nil
	}
	ok, err := db.ownsRow(ctx, q, "projects", *projectID, userID)
	if err != nil {
		return apperror.StoreUnavailable("checking project", err)
	}
	if !ok {
		return apperror.NotFound("project", *projectID)
	}
	return nil
}

func scanSnippet(row scanner) (*model.Snippet, error) {
	var s model.Snippet
	var projectID sql.NullString
	if err := row.Scan(
		&s.ID, &s.UserID, &projectID, &s.Title, &s.Code, &s.Language,
		&s.Description, &s.IsFavorite, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.ProjectID = stringPtr(projectID)
	return &s, nil
}
