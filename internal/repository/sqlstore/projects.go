package sqlstore

import (
	"context"
	"database/sql"

	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/model"
)

const projectColumns = `id, user_id, name, description, color, created_at, updated_at`

// ListProjects returns the user's projects, most recently updated first.
func (db *DB) ListProjects(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := db.query(ctx, db.conn,
		`SELECT `+projectColumns+`
		 FROM projects
		 WHERE user_id = ?
		 ORDER BY updated_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.StoreUnavailable("listing projects", err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, apperror.StoreUnavailable("scanning project row", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreUnavailable("iterating projects", err)
	}
	return projects, nil
}

// GetProject returns the project if the user owns it. Missing and foreign
// projects are both reported as NotFound.
func (db *DB) GetProject(ctx context.Context, id, userID string) (*model.Project, error) {
	p, err := scanProject(db.queryRow(ctx, db.conn,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("project", id)
	}
	if err != nil {
		return nil, apperror.StoreUnavailable("getting project", err)
	}
	return p, nil
}

// CreateProject assigns ID and timestamps and inserts the row. The caller
// has already applied defaults.
func (db *DB) CreateProject(ctx context.Context, project *model.Project) error {
	ts := now()
	project.ID = xid.New().String()
	project.CreatedAt = ts
	project.UpdatedAt = ts

	if _, err := db.exec(ctx, db.conn,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.UserID, project.Name, project.Description, project.Color,
		project.CreatedAt, project.UpdatedAt,
	); err != nil {
		return apperror.StoreUnavailable("creating project", err)
	}
	return nil
}

// UpdateProject applies the set fields of patch and bumps updated_at.
func (db *DB) UpdateProject(ctx context.Context, id, userID string, patch model.ProjectPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	var set setList
	if patch.Name.Set {
		set.add("name", patch.Name.Value)
	}
	if patch.Description.Set {
		set.add("description", patch.Description.Value)
	}
	if patch.Color.Set {
		set.add("color", patch.Color.Value)
	}
	set.add("updated_at", now())

	if err := db.update(ctx, db.conn, "projects", id, userID, &set); err != nil {
		return apperror.StoreUnavailable("updating project", err)
	}
	return nil
}

// DeleteProject removes the project and everything grouped under it.
func (db *DB) DeleteProject(ctx context.Context, id, userID string) error {
	return db.runCascade(ctx, "deleting project", projectCascade, id, userID)
}

func scanProject(row scanner) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.Color,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
