package sqlstore

import (
	"context"
	"database/sql"

	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/model"
)

const fileColumns = `id, user_id, project_id, filename, mime_type, file_size, url, file_key, created_at`

// ListFiles returns the user's file records, newest first.
func (db *DB) ListFiles(ctx context.Context, userID, projectID string) ([]model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = ?`
	args := []any{userID}
	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.query(ctx, db.conn, query, args...)
	if err != nil {
		return nil, apperror.StoreUnavailable("listing files", err)
	}
	defer rows.Close()

	files := make([]model.FileRecord, 0)
	for rows.Next() {
		var f model.FileRecord
		var projectID sql.NullString
		if err := rows.Scan(
			&f.ID, &f.UserID, &projectID, &f.Filename, &f.MimeType, &f.FileSize,
			&f.URL, &f.FileKey, &f.CreatedAt,
		); err != nil {
			return nil, apperror.StoreUnavailable("scanning file row", err)
		}
		f.ProjectID = stringPtr(projectID)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreUnavailable("iterating files", err)
	}
	return files, nil
}

// CreateFile records an uploaded blob. A project reference must be owned by
// the same user.
func (db *DB) CreateFile(ctx context.Context, file *model.FileRecord) error {
	file.ID = xid.New().String()
	file.CreatedAt = now()

	return db.withTx(ctx, "creating file", func(tx *sql.Tx) error {
		if err := db.requireProject(ctx, tx, file.ProjectID, file.UserID); err != nil {
			return err
		}
		if _, err := db.exec(ctx, tx,
			`INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			file.ID, file.UserID, nullString(file.ProjectID), file.Filename, file.MimeType,
			file.FileSize, file.URL, file.FileKey, file.CreatedAt,
		); err != nil {
			return apperror.StoreUnavailable("creating file", err)
		}
		return nil
	})
}

// DeleteFile removes the record only. The blob is left in place.
func (db *DB) DeleteFile(ctx context.Context, id, userID string) error {
	if _, err := db.exec(ctx, db.conn,
		`DELETE FROM files WHERE id = ? AND user_id = ?`, id, userID,
	); err != nil {
		return apperror.StoreUnavailable("deleting file", err)
	}
	return nil
}
