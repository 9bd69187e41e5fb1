package sqlstore

import (
	"context"
	"database/sql"
	"slices"

	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/model"
)

const chatColumns = `id, user_id, snippet_id, role, content, created_at`

// SaveChatMessage appends a message to the user's history. A snippet-scoped
// message requires the snippet to exist and belong to the same user.
func (db *DB) SaveChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = now()

	return db.withTx(ctx, "saving chat message", func(tx *sql.Tx) error {
		if msg.SnippetID != nil {
			ok, err := db.ownsRow(ctx, tx, "snippets", *msg.SnippetID, msg.UserID)
			if err != nil {
				return apperror.StoreUnavailable("checking snippet", err)
			}
			if !ok {
				return apperror.NotFound("snippet", *msg.SnippetID)
			}
		}
		if _, err := db.exec(ctx, tx,
			`INSERT INTO ai_chats (`+chatColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.UserID, nullString(msg.SnippetID), string(msg.Role), msg.Content, msg.CreatedAt,
		); err != nil {
			return apperror.StoreUnavailable("saving chat message", err)
		}
		return nil
	})
}

// ListChatHistory returns the newest `limit` messages, oldest first.
//
// The query reads newest-first so LIMIT keeps the tail of the conversation,
// then the slice is reversed. xids grow monotonically within a process, so
// "id DESC" orders messages saved in the same instant.
func (db *DB) ListChatHistory(ctx context.Context, userID, snippetID string, limit int) ([]model.ChatMessage, error) {
	query := `SELECT ` + chatColumns + ` FROM ai_chats WHERE user_id = ?`
	args := []any{userID}
	if snippetID != "" {
		query += ` AND snippet_id = ?`
		args = append(args, snippetID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.query(ctx, db.conn, query, args...)
	if err != nil {
		return nil, apperror.StoreUnavailable("listing chat history", err)
	}
	defer rows.Close()

	msgs := make([]model.ChatMessage, 0, limit)
	for rows.Next() {
		var m model.ChatMessage
		var snippet sql.NullString
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &snippet, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, apperror.StoreUnavailable("scanning chat row", err)
		}
		m.SnippetID = stringPtr(snippet)
		m.Role = model.ChatRole(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreUnavailable("iterating chat history", err)
	}

	slices.Reverse(msgs)
	return msgs, nil
}

// ClearChatHistory deletes the user's messages, for one snippet or all of them.
func (db *DB) ClearChatHistory(ctx context.Context, userID, snippetID string) error {
	query := `DELETE FROM ai_chats WHERE user_id = ?`
	args := []any{userID}
	if snippetID != "" {
		query += ` AND snippet_id = ?`
		args = append(args, snippetID)
	}
	if _, err := db.exec(ctx, db.conn, query, args...); err != nil {
		return apperror.StoreUnavailable("clearing chat history", err)
	}
	return nil
}
