package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"

	"teamspend/internal/core"
)

var _ Store = (*SQLiteRepository)(nil)

// SQLiteRepository implements Store on a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func storeErr(op string, err error) error {
	return &core.StoreError{Op: op, Err: err}
}

// --- workspaces ---

func (r *SQLiteRepository) CreateWorkspace(ctx context.Context, w *core.Workspace) error {
	if err := w.Validate(); err != nil {
		return err
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO workspaces (id, name, amount_cents, total_expenses_cents) VALUES (?, ?, ?, 0)",
		id, w.Name, w.Amount.Cents,
	)
	if err != nil {
		return storeErr("insert workspace", err)
	}
	w.ID = id
	w.TotalExpenses = core.Money{}
	w.Members = []string{}

	slog.DebugContext(ctx, "Workspace saved to SQLite", "component", "storage", "workspace_id", id)
	return nil
}

func (r *SQLiteRepository) GetWorkspace(ctx context.Context, id string) (core.Workspace, error) {
	w, err := scanWorkspace(r.db.QueryRowContext(ctx,
		"SELECT id, name, amount_cents, total_expenses_cents FROM workspaces WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Workspace{}, core.NewNotFound(core.EntityWorkspace, id)
	}
	if err != nil {
		return core.Workspace{}, storeErr("get workspace", err)
	}

	lists, err := r.memberLists(ctx, "WHERE workspace_id = ?", id)
	if err != nil {
		return core.Workspace{}, err
	}
	w.Members = lists[id]
	if w.Members == nil {
		w.Members = []string{}
	}
	return w, nil
}

func (r *SQLiteRepository) ListWorkspaces(ctx context.Context) ([]core.Workspace, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, amount_cents, total_expenses_cents FROM workspaces ORDER BY seq")
	if err != nil {
		return nil, storeErr("list workspaces", err)
	}
	defer rows.Close()

	var out []core.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, storeErr("scan workspace", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate workspaces", err)
	}

	lists, err := r.memberLists(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Members = lists[out[i].ID]
		if out[i].Members == nil {
			out[i].Members = []string{}
		}
	}
	return out, nil
}

// memberLists loads ordered workspace member lists keyed by workspace id.
func (r *SQLiteRepository) memberLists(ctx context.Context, where string, args ...any) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT workspace_id, member_id FROM workspace_members "+where+" ORDER BY seq", args...)
	if err != nil {
		return nil, storeErr("list workspace members", err)
	}
	defer rows.Close()

	lists := make(map[string][]string)
	for rows.Next() {
		var wsID, memberID string
		if err := rows.Scan(&wsID, &memberID); err != nil {
			return nil, storeErr("scan workspace member", err)
		}
		lists[wsID] = append(lists[wsID], memberID)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate workspace members", err)
	}
	return lists, nil
}

func (r *SQLiteRepository) IncrementWorkspaceTotal(ctx context.Context, id string, delta core.Money) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE workspaces SET total_expenses_cents = total_expenses_cents + ? WHERE id = ?",
		delta.Cents, id,
	)
	if err != nil {
		return storeErr("increment workspace total", err)
	}
	if err := requireAffected(res, core.EntityWorkspace, id); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Workspace total adjusted", "component", "storage",
		"workspace_id", id, "delta_cents", delta.Cents)
	return nil
}

func (r *SQLiteRepository) PushWorkspaceMember(ctx context.Context, workspaceID, memberID string) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO workspace_members (workspace_id, member_id) SELECT id, ? FROM workspaces WHERE id = ?",
		memberID, workspaceID,
	)
	if err != nil {
		return storeErr("push workspace member", err)
	}
	return requireAffected(res, core.EntityWorkspace, workspaceID)
}

func (r *SQLiteRepository) PullWorkspaceMember(ctx context.Context, workspaceID, memberID string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM workspace_members WHERE workspace_id = ? AND member_id = ?",
		workspaceID, memberID,
	)
	if err != nil {
		return storeErr("pull workspace member", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// Nothing pulled: distinguish a missing workspace from a missing entry.
	var exists int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM workspaces WHERE id = ?", workspaceID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFound(core.EntityWorkspace, workspaceID)
	}
	if err != nil {
		return storeErr("check workspace", err)
	}
	return nil
}

// --- members ---

func (r *SQLiteRepository) CreateMember(ctx context.Context, m *core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO members (id, name, contact_number, workspace_id, total_expenses_cents) VALUES (?, ?, ?, ?, 0)",
		id, m.Name, m.ContactNumber, nullString(m.WorkspaceID),
	)
	if err != nil {
		return storeErr("insert member", err)
	}
	m.ID = id
	m.TotalExpenses = core.Money{}

	slog.DebugContext(ctx, "Member saved to SQLite", "component", "storage",
		"member_id", id, "workspace_id", m.WorkspaceID)
	return nil
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id string) (core.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx,
		"SELECT id, name, contact_number, workspace_id, total_expenses_cents FROM members WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, core.NewNotFound(core.EntityMember, id)
	}
	if err != nil {
		return core.Member{}, storeErr("get member", err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context, f MemberFilter) ([]core.Member, error) {
	query := "SELECT id, name, contact_number, workspace_id, total_expenses_cents FROM members"
	var args []any
	if f.WorkspaceID != "" {
		query += " WHERE workspace_id = ?"
		args = append(args, f.WorkspaceID)
	}
	query += " ORDER BY seq"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list members", err)
	}
	defer rows.Close()

	out := []core.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, storeErr("scan member", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate members", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SetMemberTotal(ctx context.Context, id string, total core.Money) (core.Member, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE members SET total_expenses_cents = ? WHERE id = ?", total.Cents, id)
	if err != nil {
		return core.Member{}, storeErr("set member total", err)
	}
	if err := requireAffected(res, core.EntityMember, id); err != nil {
		return core.Member{}, err
	}
	return r.GetMember(ctx, id)
}

func (r *SQLiteRepository) DeleteMember(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id)
	if err != nil {
		return storeErr("delete member", err)
	}
	return requireAffected(res, core.EntityMember, id)
}

// --- expenses ---

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO expenses (id, description, amount_cents, member_id) VALUES (?, ?, ?, ?)",
		id, e.Description, e.Amount.Cents, e.MemberID,
	)
	if err != nil {
		return storeErr("insert expense", err)
	}
	e.ID = id

	slog.DebugContext(ctx, "Expense saved to SQLite", "component", "storage",
		"expense_id", id, "member_id", e.MemberID, "amount_cents", e.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		"SELECT id, description, amount_cents, member_id FROM expenses WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.NewNotFound(core.EntityExpense, id)
	}
	if err != nil {
		return core.Expense{}, storeErr("get expense", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	query := "SELECT id, description, amount_cents, member_id FROM expenses"
	var args []any
	if f.MemberID != "" {
		query += " WHERE member_id = ?"
		args = append(args, f.MemberID)
	}
	query += " ORDER BY seq"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list expenses", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, storeErr("scan expense", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate expenses", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return storeErr("delete expense", err)
	}
	return requireAffected(res, core.EntityExpense, id)
}

func (r *SQLiteRepository) SumExpensesByWorkspace(ctx context.Context, workspaceID string) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(e.amount_cents), 0)
		FROM expenses e
		JOIN members m ON m.id = e.member_id
		WHERE m.workspace_id = ?`, workspaceID).Scan(&cents)
	if err != nil {
		return core.Money{}, storeErr("sum workspace expenses", err)
	}
	return core.Money{Cents: cents}, nil
}

// --- helpers ---

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rows affected", err)
	}
	if n == 0 {
		return core.NewNotFound(entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanWorkspace(row rowScanner) (core.Workspace, error) {
	var w core.Workspace
	err := row.Scan(&w.ID, &w.Name, &w.Amount.Cents, &w.TotalExpenses.Cents)
	return w, err
}

func scanMember(row rowScanner) (core.Member, error) {
	var (
		m  core.Member
		ws sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Name, &m.ContactNumber, &ws, &m.TotalExpenses.Cents); err != nil {
		return core.Member{}, err
	}
	m.WorkspaceID = ws.String
	return m, nil
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	err := row.Scan(&e.ID, &e.Description, &e.Amount.Cents, &e.MemberID)
	return e, err
}
