package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"teamspend/internal/amqp"
	"teamspend/internal/core"
	"teamspend/internal/metrics"
	"teamspend/internal/storage"
)

const defaultConcurrency = 4

// Drift compares a workspace's stored running total with the sum of expenses
// whose member currently belongs to it. A non-zero delta is expected after a
// member is deleted (its expenses stay counted) or after a partial failure.
type Drift struct {
	WorkspaceID string
	Stored      core.Money
	Recomputed  core.Money
}

func (d Drift) Delta() core.Money {
	return d.Stored.Sub(d.Recomputed)
}

// AuditWorker recomputes workspace totals and reports drift. It never writes
// totals back.
type AuditWorker struct {
	store       storage.Store
	metrics     *metrics.Registry
	concurrency int
}

func NewAuditWorker(store storage.Store, reg *metrics.Registry, concurrency int) *AuditWorker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &AuditWorker{
		store:       store,
		metrics:     reg,
		concurrency: concurrency,
	}
}

// AuditWorkspace recomputes a single workspace.
func (w *AuditWorker) AuditWorkspace(ctx context.Context, workspaceID string) (Drift, error) {
	ws, err := w.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return Drift{}, fmt.Errorf("get workspace: %w", err)
	}
	sum, err := w.store.SumExpensesByWorkspace(ctx, workspaceID)
	if err != nil {
		return Drift{}, fmt.Errorf("sum expenses: %w", err)
	}

	d := Drift{WorkspaceID: workspaceID, Stored: ws.TotalExpenses, Recomputed: sum}
	w.metrics.SetDrift(workspaceID, d.Delta().Cents)

	if !d.Delta().IsZero() {
		slog.WarnContext(ctx, "Workspace total drift detected",
			"component", "worker",
			"workspace_id", workspaceID,
			"stored_cents", d.Stored.Cents,
			"recomputed_cents", d.Recomputed.Cents,
			"delta_cents", d.Delta().Cents)
	}
	return d, nil
}

// Audit checks every workspace concurrently and returns those that drifted,
// in workspace order.
func (w *AuditWorker) Audit(ctx context.Context) ([]Drift, error) {
	workspaces, err := w.store.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}

	results := make([]Drift, len(workspaces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for i, ws := range workspaces {
		g.Go(func() error {
			d, err := w.AuditWorkspace(gctx, ws.ID)
			if err != nil {
				return fmt.Errorf("audit workspace %s: %w", ws.ID, err)
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var drifted []Drift
	for _, d := range results {
		if !d.Delta().IsZero() {
			drifted = append(drifted, d)
		}
	}

	slog.InfoContext(ctx, "Audit complete",
		"component", "worker",
		"workspaces", len(workspaces),
		"drifted", len(drifted))
	return drifted, nil
}

// HandleEvent audits the workspace an event touched. Events that do not
// resolve to a workspace are acknowledged without work.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev amqp.BudgetEvent) error {
	workspaceID := ev.WorkspaceID
	if workspaceID == "" && ev.MemberID != "" {
		m, err := w.store.GetMember(ctx, ev.MemberID)
		switch {
		case core.IsNotFound(err):
		case err != nil:
			return fmt.Errorf("resolve member: %w", err)
		default:
			workspaceID = m.WorkspaceID
		}
	}
	if workspaceID == "" {
		slog.DebugContext(ctx, "Event has no workspace, nothing to audit",
			"component", "worker", "event_type", ev.Type)
		return nil
	}

	if _, err := w.AuditWorkspace(ctx, workspaceID); err != nil {
		if core.IsNotFound(err) {
			slog.WarnContext(ctx, "Event references unknown workspace",
				"component", "worker", "event_type", ev.Type, "workspace_id", workspaceID)
			return nil
		}
		return err
	}
	return nil
}

// Run audits once immediately and then every interval until ctx is done.
func (w *AuditWorker) Run(ctx context.Context, interval time.Duration) error {
	if _, err := w.Audit(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup audit failed", "component", "worker", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Audit(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic audit failed", "component", "worker", "error", err)
			}
		}
	}
}
