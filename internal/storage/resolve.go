package storage

import (
	"context"

	"teamspend/internal/core"
)

// ResolveMember follows Expense.MemberID.
func ResolveMember(ctx context.Context, ms MemberStore, e core.Expense) (core.Member, error) {
	return ms.GetMember(ctx, e.MemberID)
}

// ResolveWorkspace follows Member.WorkspaceID. ok is false, with a nil error,
// when the member carries no workspace reference.
func ResolveWorkspace(ctx context.Context, ws WorkspaceStore, m core.Member) (w core.Workspace, ok bool, err error) {
	if m.WorkspaceID == "" {
		return core.Workspace{}, false, nil
	}
	w, err = ws.GetWorkspace(ctx, m.WorkspaceID)
	if err != nil {
		return core.Workspace{}, false, err
	}
	return w, true, nil
}
