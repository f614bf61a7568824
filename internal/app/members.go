package app

import (
	"context"
	"database/sql"
	"errors"

	"taskdeck/api/internal/store"
)

func memberView(m store.MemberWithUser) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"workspaceId": m.WorkspaceID,
		"userId":      m.UserID,
		"role":        m.Role,
		"name":        m.UserName,
		"email":       m.UserEmail,
		"createdAt":   m.CreatedAt,
	}
}

func (s *Service) ListMembers(ctx context.Context, userID, workspaceID string) ([]map[string]any, error) {
	if _, err := s.requireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		items = append(items, memberView(m))
	}
	return items, nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, userID, memberID, role string) (map[string]any, error) {
	target, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUnauthorized()
		}
		return nil, err
	}
	if _, err := s.requireAdmin(ctx, target.WorkspaceID, userID); err != nil {
		return nil, err
	}
	if role != store.RoleAdmin && role != store.RoleMember {
		return nil, errValidation("role must be ADMIN or MEMBER")
	}

	if target.Role == store.RoleAdmin && role == store.RoleMember {
		admins, err := s.store.CountAdmins(ctx, target.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, errValidation("cannot demote the last admin")
		}
	}

	if err := s.store.UpdateMemberRole(ctx, memberID, role); err != nil {
		return nil, err
	}
	return map[string]any{"id": memberID, "role": role}, nil
}

// DeleteMember removes a member. Admins can remove anyone; a member can
// remove themself (leave). The last member cannot be removed: delete the
// workspace instead.
func (s *Service) DeleteMember(ctx context.Context, userID, memberID string) (map[string]any, error) {
	target, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUnauthorized()
		}
		return nil, err
	}
	caller, err := s.requireMember(ctx, target.WorkspaceID, userID)
	if err != nil {
		return nil, err
	}
	if caller.Role != store.RoleAdmin && caller.ID != target.ID {
		return nil, errUnauthorized()
	}

	total, err := s.store.CountMembers(ctx, target.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if total <= 1 {
		return nil, errValidation("cannot remove the only member")
	}
	if target.Role == store.RoleAdmin {
		admins, err := s.store.CountAdmins(ctx, target.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, errValidation("cannot remove the last admin")
		}
	}

	if err := s.store.DeleteMember(ctx, target.ID); err != nil {
		return nil, err
	}
	return map[string]any{"id": target.ID}, nil
}
