package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"strings"

	"taskdeck/api/internal/invite"
	"taskdeck/api/internal/rbac"
	"taskdeck/api/internal/store"
	"taskdeck/api/internal/util"
)

// ImageUpload carries one multipart image field through to the image store.
type ImageUpload struct {
	FileName    string
	ContentType string
	Data        io.Reader
	Size        int64
}

func workspaceView(ws store.Workspace) map[string]any {
	return map[string]any{
		"id":         ws.ID,
		"name":       ws.Name,
		"userId":     ws.UserID,
		"imageUrl":   ws.ImageURL,
		"inviteCode": ws.InviteCode,
		"createdAt":  ws.CreatedAt,
		"updatedAt":  ws.UpdatedAt,
	}
}

func (s *Service) uploadImage(ctx context.Context, img *ImageUpload) (fileID, url string, err error) {
	if img == nil {
		return "", "", nil
	}
	if s.images == nil {
		return "", "", errValidation("image storage is not configured")
	}
	return s.images.Upload(ctx, img.FileName, img.ContentType, img.Data, img.Size)
}

// dropImage removes a stored image file, best effort.
func (s *Service) dropImage(ctx context.Context, fileID string) {
	if s.images == nil || fileID == "" {
		return
	}
	if err := s.images.Delete(ctx, fileID); err != nil {
		log.Printf("imagestore: delete %s: %v", fileID, err)
	}
}

func (s *Service) ListWorkspaces(ctx context.Context, userID string) ([]map[string]any, error) {
	workspaces, err := s.store.ListWorkspacesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(workspaces))
	for _, ws := range workspaces {
		items = append(items, workspaceView(ws))
	}
	return items, nil
}

func (s *Service) CreateWorkspace(ctx context.Context, userID, name string, image *ImageUpload) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("name is required")
	}

	code, err := invite.Generate(invite.CodeLength)
	if err != nil {
		return nil, err
	}
	fileID, imageURL, err := s.uploadImage(ctx, image)
	if err != nil {
		return nil, err
	}

	ws := store.Workspace{
		ID:          util.NewID("wks"),
		Name:        name,
		UserID:      userID,
		ImageURL:    imageURL,
		ImageFileID: fileID,
		InviteCode:  code,
	}
	if err := s.store.InsertWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	if err := s.store.InsertMember(ctx, store.Member{
		ID:          util.NewID("mbr"),
		WorkspaceID: ws.ID,
		UserID:      userID,
		Role:        store.RoleAdmin,
	}); err != nil {
		return nil, err
	}

	created, err := s.store.GetWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	return workspaceView(created), nil
}

func (s *Service) GetWorkspace(ctx context.Context, userID, workspaceID string) (map[string]any, error) {
	if _, err := s.requireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUnauthorized()
		}
		return nil, err
	}
	return workspaceView(ws), nil
}

// GetWorkspaceInfo is the trimmed join-screen view. Still member-gated: the
// invite code in the URL is the thing being verified, not a credential.
func (s *Service) GetWorkspaceInfo(ctx context.Context, userID, workspaceID string) (map[string]any, error) {
	if _, err := s.requireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUnauthorized()
		}
		return nil, err
	}
	return map[string]any{
		"id":       ws.ID,
		"name":     ws.Name,
		"imageUrl": ws.ImageURL,
	}, nil
}

func (s *Service) UpdateWorkspace(ctx context.Context, userID, workspaceID, name string, image *ImageUpload, removeImage bool) (map[string]any, error) {
	if _, err := s.requireAdmin(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUnauthorized()
		}
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		ws.Name = name
	}

	oldFileID := ws.ImageFileID
	switch {
	case image != nil:
		fileID, imageURL, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		ws.ImageFileID = fileID
		ws.ImageURL = imageURL
	case removeImage:
		ws.ImageFileID = ""
		ws.ImageURL = ""
	}

	if err := s.store.UpdateWorkspace(ctx, ws.ID, ws.Name, ws.ImageURL, ws.ImageFileID); err != nil {
		return nil, err
	}
	if oldFileID != ws.ImageFileID {
		s.dropImage(ctx, oldFileID)
	}

	updated, err := s.store.GetWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	return workspaceView(updated), nil
}

func (s *Service) DeleteWorkspace(ctx context.Context, userID, workspaceID string) (map[string]any, error) {
	if _, err := s.requireAdmin(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	if err := s.deleteWorkspaceCascade(ctx, workspaceID); err != nil {
		return nil, err
	}
	return map[string]any{"id": workspaceID}, nil
}

func (s *Service) ResetInviteCode(ctx context.Context, userID, workspaceID string) (map[string]any, error) {
	if _, err := s.requireAdmin(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	code, err := invite.Generate(invite.CodeLength)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateInviteCode(ctx, workspaceID, code); err != nil {
		return nil, err
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return workspaceView(ws), nil
}

// JoinWorkspace admits the caller as MEMBER when the presented code matches
// the workspace's current invite code exactly.
func (s *Service) JoinWorkspace(ctx context.Context, userID, workspaceID, code string) (map[string]any, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUnauthorized()
		}
		return nil, err
	}

	if _, err := s.store.GetMember(ctx, workspaceID, userID); err == nil {
		return nil, errAlreadyMember()
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if code != ws.InviteCode {
		return nil, errValidation("invalid invite code")
	}

	if err := s.store.InsertMember(ctx, store.Member{
		ID:          util.NewID("mbr"),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        store.RoleMember,
	}); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, errAlreadyMember()
		}
		return nil, err
	}
	return workspaceView(ws), nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}
