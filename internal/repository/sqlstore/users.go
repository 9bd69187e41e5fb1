package sqlstore

import (
	"context"
	"database/sql"

	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/model"
)

const userColumns = `id, open_id, name, email, login_method, role, password_hash,
	created_at, updated_at, last_signed_in`

// UpsertUser inserts the account for user.OpenID, or refreshes the profile of
// the existing one, in a single statement.
//
// ROLE IS STICKY UPWARD:
// An existing admin stays admin; a plain user is promoted only when the
// caller passes RoleAdmin (the configured owner). Nobody is ever demoted by
// signing in.
//
// On return *user is the stored row.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	ts := now()
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	var id string
	err := db.queryRow(ctx, db.conn,
		`INSERT INTO users (id, open_id, name, email, login_method, role, password_hash,
			created_at, updated_at, last_signed_in)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?, ?)
		 ON CONFLICT (open_id) DO UPDATE SET
			name           = excluded.name,
			email          = excluded.email,
			login_method   = excluded.login_method,
			role           = CASE WHEN excluded.role = 'admin' THEN 'admin' ELSE users.role END,
			updated_at     = excluded.updated_at,
			last_signed_in = excluded.last_signed_in
		 RETURNING id`,
		xid.New().String(), user.OpenID, user.Name, user.Email, user.LoginMethod,
		string(user.Role), ts, ts, ts,
	).Scan(&id)
	if err != nil {
		return apperror.StoreUnavailable("upserting user", err)
	}

	stored, err := db.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// CreateLocalUser inserts a password account. A duplicate open id is
// reported as ErrConflict; the check and the insert are one statement.
func (db *DB) CreateLocalUser(ctx context.Context, user *model.User) error {
	ts := now()
	user.ID = xid.New().String()
	user.CreatedAt, user.UpdatedAt, user.LastSignedIn = ts, ts, ts
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	var id string
	err := db.queryRow(ctx, db.conn,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (open_id) DO NOTHING
		 RETURNING id`,
		user.ID, user.OpenID, user.Name, user.Email, user.LoginMethod,
		string(user.Role), user.PasswordHash, ts, ts, ts,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return apperror.Conflict("account", user.Email)
	}
	if err != nil {
		return apperror.StoreUnavailable("creating user", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", id)
}

func (db *DB) GetUserByOpenID(ctx context.Context, openID string) (*model.User, error) {
	return db.getUser(ctx, "open_id", openID)
}

func (db *DB) getUser(ctx context.Context, column, value string) (*model.User, error) {
	user, err := scanUser(db.queryRow(ctx, db.conn,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value,
	))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", value)
	}
	if err != nil {
		return nil, apperror.StoreUnavailable("getting user", err)
	}
	return user, nil
}

// TouchSignIn stamps last_signed_in. Used by password logins, which do not
// go through UpsertUser.
func (db *DB) TouchSignIn(ctx context.Context, id string) error {
	ts := now()
	if _, err := db.exec(ctx, db.conn,
		`UPDATE users SET last_signed_in = ?, updated_at = ? WHERE id = ?`,
		ts, ts, id,
	); err != nil {
		return apperror.StoreUnavailable("recording sign-in", err)
	}
	return nil
}

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(
		&u.ID, &u.OpenID, &u.Name, &u.Email, &u.LoginMethod, &role,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.LastSignedIn,
	); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
