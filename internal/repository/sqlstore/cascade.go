package sqlstore

import (
	"context"
	"database/sql"

	"github.com/codevault/codevault/internal/apperror"
)

// cascadeStep deletes one child table's rows for a parent. Every query takes
// exactly two arguments in the order (parentID, userID).
type cascadeStep struct {
	what  string
	query string
	// lock marks a SELECT ... FOR UPDATE step, run only on Postgres.
	lock bool
}

// CASCADE PLANS:
// The schema has no foreign keys, so deleting a parent is an explicit, ordered
// list of child deletions that ends with the parent itself. The whole plan
// runs in one transaction: either every row goes or none does.
//
// Child rows are selected through the owned parent ("... IN (SELECT id FROM
// snippets WHERE ... AND user_id = ?)"), so a foreign or missing parent
// matches nothing at every step and the plan is a silent no-op.
//
// ROW LOCKS (Postgres):
// Writers that add a child lock its parent FOR SHARE (see ownsRow). A plan
// first locks the rows it will delete FOR UPDATE, so it waits for those
// writers to commit and its later DELETEs see their rows. A writer that
// arrives after the lock waits instead, then finds the parent gone.

var snippetCascade = []cascadeStep{
	{what: "lock snippet", query: `SELECT id FROM snippets WHERE id = ? AND user_id = ? FOR UPDATE`, lock: true},
	{what: "line notes", query: `DELETE FROM line_notes WHERE snippet_id IN
		(SELECT id FROM snippets WHERE id = ? AND user_id = ?)`},
	{what: "assistant chats", query: `DELETE FROM ai_chats WHERE snippet_id IN
		(SELECT id FROM snippets WHERE id = ? AND user_id = ?)`},
	{what: "snippet", query: `DELETE FROM snippets WHERE id = ? AND user_id = ?`},
}

var projectCascade = []cascadeStep{
	{what: "lock project", query: `SELECT id FROM projects WHERE id = ? AND user_id = ? FOR UPDATE`, lock: true},
	{what: "lock snippets", query: `SELECT id FROM snippets WHERE project_id = ? AND user_id = ? FOR UPDATE`, lock: true},
	{what: "line notes", query: `DELETE FROM line_notes WHERE snippet_id IN
		(SELECT id FROM snippets WHERE project_id = ? AND user_id = ?)`},
	{what: "assistant chats", query: `DELETE FROM ai_chats WHERE snippet_id IN
		(SELECT id FROM snippets WHERE project_id = ? AND user_id = ?)`},
	{what: "snippets", query: `DELETE FROM snippets WHERE project_id = ? AND user_id = ?`},
	{what: "files", query: `DELETE FROM files WHERE project_id = ? AND user_id = ?`},
	{what: "project", query: `DELETE FROM projects WHERE id = ? AND user_id = ?`},
}

// runCascade executes plan for (parentID, userID) inside one transaction.
func (db *DB) runCascade(ctx context.Context, op string, plan []cascadeStep, parentID, userID string) error {
	return db.withTx(ctx, op, func(tx *sql.Tx) error {
		for _, step := range plan {
			if step.lock && !db.postgres {
				continue
			}
			if _, err := db.exec(ctx, tx, step.query, parentID, userID); err != nil {
				return apperror.StoreUnavailable(op+": "+step.what, err)
			}
		}
		return nil
	})
}
