package services

import (
	"context"
	"fmt"
	"log/slog"

	"teamspend/internal/core"
	"teamspend/internal/log"
	"teamspend/internal/metrics"
	"teamspend/internal/storage"
)

const (
	directionIncrement = "increment"
	directionDecrement = "decrement"
)

// Aggregator keeps Workspace.totalExpenses in step with expense creation and
// deletion. Adjustments are single atomic increments in the store; the
// aggregator never reads, modifies and writes a total itself.
type Aggregator struct {
	workspaces storage.WorkspaceStore
	members    storage.MemberStore
	metrics    *metrics.Registry
	logger     *log.Logger
}

func NewAggregator(ws storage.WorkspaceStore, ms storage.MemberStore, reg *metrics.Registry, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Aggregator{
		workspaces: ws,
		members:    ms,
		metrics:    reg,
		logger:     logger.WithComponent(log.ComponentAggregation),
	}
}

// OnExpenseCreated adds e.Amount to the total of the workspace that owns the
// expense's member. It returns the adjusted workspace id, or "" when the
// update was skipped because the chain expense -> member -> workspace does not
// resolve. Skips are not errors.
func (a *Aggregator) OnExpenseCreated(ctx context.Context, e core.Expense) (string, error) {
	return a.apply(ctx, e, e.Amount, directionIncrement)
}

// OnExpenseDeleted subtracts e.Amount. Callers must invoke it before the
// expense record is removed.
func (a *Aggregator) OnExpenseDeleted(ctx context.Context, e core.Expense) (string, error) {
	return a.apply(ctx, e, e.Amount.Neg(), directionDecrement)
}

// SetMemberTotal overwrites the member's totalExpenses with total. The value
// is trusted as supplied and is not checked against the member's expenses.
func (a *Aggregator) SetMemberTotal(ctx context.Context, memberID string, total core.Money) (core.Member, error) {
	m, err := a.members.SetMemberTotal(ctx, memberID, total)
	if err != nil {
		return core.Member{}, fmt.Errorf("set member total: %w", err)
	}
	a.logger.LogFields(ctx, slog.LevelInfo, "Member total overwritten", log.NewFields().
		WithOperation(log.OpUpdate).
		WithMember(memberID).
		WithWorkspace(m.WorkspaceID).
		WithExpense("", total.Cents))
	return m, nil
}

func (a *Aggregator) apply(ctx context.Context, e core.Expense, delta core.Money, direction string) (string, error) {
	fields := func() log.LogFields {
		return log.NewFields().
			WithOperation(log.OpIncrement).
			WithExpense(e.ID, e.Amount.Cents).
			WithMember(e.MemberID)
	}

	m, err := storage.ResolveMember(ctx, a.members, e)
	if core.IsNotFound(err) {
		a.skip(ctx, direction, metrics.OutcomeSkippedNoMember, fields())
		return "", nil
	}
	if err != nil {
		a.metrics.RecordAggregation(direction, metrics.OutcomeFailed)
		return "", fmt.Errorf("resolve member: %w", err)
	}

	w, ok, err := storage.ResolveWorkspace(ctx, a.workspaces, m)
	if core.IsNotFound(err) {
		a.skip(ctx, direction, metrics.OutcomeSkippedWSMissing, fields().WithWorkspace(m.WorkspaceID))
		return "", nil
	}
	if err != nil {
		a.metrics.RecordAggregation(direction, metrics.OutcomeFailed)
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	if !ok {
		a.skip(ctx, direction, metrics.OutcomeSkippedNoWS, fields())
		return "", nil
	}

	if err := a.workspaces.IncrementWorkspaceTotal(ctx, w.ID, delta); err != nil {
		// The workspace vanished between resolve and increment.
		if core.IsNotFound(err) {
			a.skip(ctx, direction, metrics.OutcomeSkippedWSMissing, fields().WithWorkspace(w.ID))
			return "", nil
		}
		a.metrics.RecordAggregation(direction, metrics.OutcomeFailed)
		return "", fmt.Errorf("increment workspace total: %w", err)
	}

	a.metrics.RecordAggregation(direction, metrics.OutcomeApplied)
	f := fields().WithWorkspace(w.ID)
	f[log.FieldDeltaCents] = delta.Cents
	a.logger.LogFields(ctx, slog.LevelDebug, "Workspace total adjusted", f)
	return w.ID, nil
}

func (a *Aggregator) skip(ctx context.Context, direction, outcome string, f log.LogFields) {
	a.metrics.RecordAggregation(direction, outcome)
	f[log.FieldSkipReason] = outcome
	a.logger.LogFields(ctx, slog.LevelWarn, "Workspace total not adjusted", f)
}
