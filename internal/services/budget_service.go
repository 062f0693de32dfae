package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"teamspend/internal/amqp"
	"teamspend/internal/core"
	"teamspend/internal/log"
	"teamspend/internal/metrics"
	"teamspend/internal/storage"
)

// EventPublisher receives a notification after each successful mutation.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev amqp.BudgetEvent) error
}

type (
	// PopulatedWorkspace is a workspace with its member ids resolved to
	// records. Ids that no longer resolve are dropped.
	PopulatedWorkspace struct {
		core.Workspace
		MemberRecords []core.Member
	}

	// WorkspaceSummary is one bar of the budget chart.
	WorkspaceSummary struct {
		ID            string
		Name          string
		Amount        core.Money
		TotalExpenses core.Money
		Available     core.Money
	}
)

// BudgetService composes the entity store and the aggregator into the
// operations exposed by the HTTP API. Multi-step operations are not
// transactional: a failure after the first step leaves that step in place
// and is logged with partial_failure=true.
type BudgetService struct {
	store     storage.Store
	agg       *Aggregator
	publisher EventPublisher
	metrics   *metrics.Registry
	logger    *log.Logger
}

// NewBudgetService wires the service. publisher may be nil to disable events.
func NewBudgetService(store storage.Store, publisher EventPublisher, reg *metrics.Registry, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BudgetService{
		store:     store,
		agg:       NewAggregator(store, store, reg, logger),
		publisher: publisher,
		metrics:   reg,
		logger:    logger.WithComponent(log.ComponentBudget),
	}
}

// --- workspaces ---

func (s *BudgetService) CreateWorkspace(ctx context.Context, name string, amount core.Money) (core.Workspace, error) {
	w := core.Workspace{Name: name, Amount: amount}
	if err := s.store.CreateWorkspace(ctx, &w); err != nil {
		return core.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}

	s.logger.LogFields(ctx, slog.LevelInfo, "Workspace created", log.NewFields().
		WithOperation(log.OpCreate).
		WithWorkspace(w.ID))

	ev := amqp.NewBudgetEvent(amqp.EventWorkspaceCreated)
	ev.WorkspaceID = w.ID
	s.publish(ctx, ev)
	return w, nil
}

// ListWorkspaces returns every workspace with its member list populated, in
// insertion order.
func (s *BudgetService) ListWorkspaces(ctx context.Context) ([]PopulatedWorkspace, error) {
	workspaces, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	members, err := s.store.ListMembers(ctx, storage.MemberFilter{})
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	byID := make(map[string]core.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	out := make([]PopulatedWorkspace, 0, len(workspaces))
	for _, w := range workspaces {
		pw := PopulatedWorkspace{Workspace: w, MemberRecords: make([]core.Member, 0, len(w.Members))}
		for _, id := range w.Members {
			if m, ok := byID[id]; ok {
				pw.MemberRecords = append(pw.MemberRecords, m)
			}
		}
		out = append(out, pw)
	}
	return out, nil
}

func (s *BudgetService) WorkspaceSummary(ctx context.Context) ([]WorkspaceSummary, error) {
	workspaces, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	out := make([]WorkspaceSummary, 0, len(workspaces))
	for _, w := range workspaces {
		out = append(out, WorkspaceSummary{
			ID:            w.ID,
			Name:          w.Name,
			Amount:        w.Amount,
			TotalExpenses: w.TotalExpenses,
			Available:     w.Available(),
		})
	}
	return out, nil
}

// --- members ---

// CreateMember stores m and appends its id to the referenced workspace's
// member list. A workspace id that does not resolve is tolerated: the member
// keeps the dangling reference and no list is updated.
func (s *BudgetService) CreateMember(ctx context.Context, m core.Member) (core.Member, error) {
	if err := s.store.CreateMember(ctx, &m); err != nil {
		return core.Member{}, fmt.Errorf("create member: %w", err)
	}

	fields := log.NewFields().WithOperation(log.OpCreate).WithMember(m.ID).WithWorkspace(m.WorkspaceID)

	if m.WorkspaceID != "" {
		err := s.store.PushWorkspaceMember(ctx, m.WorkspaceID, m.ID)
		switch {
		case core.IsNotFound(err):
			s.logger.LogFields(ctx, slog.LevelWarn, "Member references unknown workspace", fields.WithError(err))
		case err != nil:
			s.logger.LogFields(ctx, slog.LevelError, "Member saved but workspace list not updated",
				fields.WithOperation(log.OpPush).WithError(err).WithPartialFailure())
			return m, fmt.Errorf("push workspace member: %w", err)
		}
	}

	s.logger.LogFields(ctx, slog.LevelInfo, "Member created", fields)

	ev := amqp.NewBudgetEvent(amqp.EventMemberCreated)
	ev.MemberID = m.ID
	ev.WorkspaceID = m.WorkspaceID
	s.publish(ctx, ev)
	return m, nil
}

// ListWorkspaceMembers returns members whose workspace reference equals
// workspaceID. An unknown workspace yields an empty list.
func (s *BudgetService) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]core.Member, error) {
	members, err := s.store.ListMembers(ctx, storage.MemberFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// DeleteMember removes the member record and pulls its id from the workspace
// list. The member's expenses and the workspace total are left untouched.
// Missing records on either side are logged and ignored.
func (s *BudgetService) DeleteMember(ctx context.Context, workspaceID, memberID string) error {
	fields := log.NewFields().WithOperation(log.OpDelete).WithMember(memberID).WithWorkspace(workspaceID)

	err := s.store.DeleteMember(ctx, memberID)
	switch {
	case core.IsNotFound(err):
		s.logger.LogFields(ctx, slog.LevelWarn, "Member to delete not found", fields)
	case err != nil:
		return fmt.Errorf("delete member: %w", err)
	}

	err = s.store.PullWorkspaceMember(ctx, workspaceID, memberID)
	switch {
	case core.IsNotFound(err):
		s.logger.LogFields(ctx, slog.LevelWarn, "Workspace to pull member from not found", fields)
	case err != nil:
		s.logger.LogFields(ctx, slog.LevelError, "Member deleted but workspace list not updated",
			fields.WithOperation(log.OpPull).WithError(err).WithPartialFailure())
		return fmt.Errorf("pull workspace member: %w", err)
	}

	s.logger.LogFields(ctx, slog.LevelInfo, "Member deleted", fields)

	ev := amqp.NewBudgetEvent(amqp.EventMemberDeleted)
	ev.MemberID = memberID
	ev.WorkspaceID = workspaceID
	s.publish(ctx, ev)
	return nil
}

// SetMemberTotal overwrites the member's totalExpenses.
func (s *BudgetService) SetMemberTotal(ctx context.Context, memberID string, total core.Money) (core.Member, error) {
	m, err := s.agg.SetMemberTotal(ctx, memberID, total)
	if err != nil {
		return core.Member{}, err
	}

	ev := amqp.NewBudgetEvent(amqp.EventMemberTotalSet)
	ev.MemberID = m.ID
	ev.WorkspaceID = m.WorkspaceID
	ev.AmountCents = total.Cents
	s.publish(ctx, ev)
	return m, nil
}

// --- expenses ---

// CreateExpense stores the expense and then increments the owning workspace's
// total. The expense is not rolled back if the increment fails.
func (s *BudgetService) CreateExpense(ctx context.Context, memberID, description string, amount core.Money) (core.Expense, error) {
	e := core.Expense{Description: description, Amount: amount, MemberID: memberID}
	if err := s.store.CreateExpense(ctx, &e); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	fields := log.NewFields().WithOperation(log.OpCreate).WithExpense(e.ID, e.Amount.Cents).WithMember(memberID)

	workspaceID, err := s.agg.OnExpenseCreated(ctx, e)
	if err != nil {
		s.logger.LogFields(ctx, slog.LevelError, "Expense saved but workspace total not incremented",
			fields.WithError(err).WithPartialFailure())
		return e, err
	}

	s.logger.LogFields(ctx, slog.LevelInfo, "Expense created", fields.WithWorkspace(workspaceID))

	ev := amqp.NewBudgetEvent(amqp.EventExpenseCreated)
	ev.ExpenseID = e.ID
	ev.MemberID = memberID
	ev.WorkspaceID = workspaceID
	ev.AmountCents = e.Amount.Cents
	s.publish(ctx, ev)
	return e, nil
}

func (s *BudgetService) ListMemberExpenses(ctx context.Context, memberID string) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{MemberID: memberID})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// DeleteExpense reads the expense, decrements the owning workspace's total by
// its amount and only then removes the record. A missing expense returns a
// NotFoundError and changes nothing.
func (s *BudgetService) DeleteExpense(ctx context.Context, id string) error {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}

	fields := log.NewFields().WithOperation(log.OpDelete).WithExpense(e.ID, e.Amount.Cents).WithMember(e.MemberID)

	workspaceID, err := s.agg.OnExpenseDeleted(ctx, e)
	if err != nil {
		return err
	}
	fields.WithWorkspace(workspaceID)

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		s.logger.LogFields(ctx, slog.LevelError, "Workspace total decremented but expense not deleted",
			fields.WithError(err).WithPartialFailure())
		return fmt.Errorf("delete expense: %w", err)
	}

	s.logger.LogFields(ctx, slog.LevelInfo, "Expense deleted", fields)

	ev := amqp.NewBudgetEvent(amqp.EventExpenseDeleted)
	ev.ExpenseID = e.ID
	ev.MemberID = e.MemberID
	ev.WorkspaceID = workspaceID
	ev.AmountCents = e.Amount.Cents
	s.publish(ctx, ev)
	return nil
}

// --- lifecycle ---

func (s *BudgetService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes the store and, when it can be closed, the publisher.
func (s *BudgetService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close budget service: %w", errors.Join(errs...))
	}
	return nil
}

func (s *BudgetService) publish(ctx context.Context, ev amqp.BudgetEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEvent(ctx, ev)
	s.metrics.RecordPublish(string(ev.Type), err)
	if err != nil {
		// The mutation is already stored; events are best effort.
		s.logger.LogFields(ctx, slog.LevelWarn, "Failed to publish event", log.NewFields().
			WithOperation(log.OpPublish).
			WithWorkspace(ev.WorkspaceID).
			WithError(err))
	}
}
