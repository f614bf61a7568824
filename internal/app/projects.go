package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskdeck/api/internal/search"
	"taskdeck/api/internal/store"
	"taskdeck/api/internal/util"
)

func projectView(p store.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"workspaceId": p.WorkspaceID,
		"name":        p.Name,
		"imageUrl":    p.ImageURL,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
}

// requireProject resolves a project and the caller's membership in its
// workspace. A missing project reads as Unauthorized.
func (s *Service) requireProject(ctx context.Context, userID, projectID string) (store.Project, store.Member, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Project{}, store.Member{}, errUnauthorized()
		}
		return store.Project{}, store.Member{}, err
	}
	member, err := s.requireMember(ctx, project.WorkspaceID, userID)
	if err != nil {
		return store.Project{}, store.Member{}, err
	}
	return project, member, nil
}

func (s *Service) ListProjects(ctx context.Context, userID, workspaceID string) ([]map[string]any, error) {
	if _, err := s.requireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		items = append(items, projectView(p))
	}
	return items, nil
}

func (s *Service) CreateProject(ctx context.Context, userID, workspaceID, name string, image *ImageUpload) (map[string]any, error) {
	if _, err := s.requireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("name is required")
	}

	fileID, imageURL, err := s.uploadImage(ctx, image)
	if err != nil {
		return nil, err
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		WorkspaceID: workspaceID,
		Name:        name,
		ImageURL:    imageURL,
		ImageFileID: fileID,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}

	created, err := s.store.GetProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	s.indexProject(created)
	return projectView(created), nil
}

func (s *Service) GetProject(ctx context.Context, userID, projectID string) (map[string]any, error) {
	project, _, err := s.requireProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return projectView(project), nil
}

func (s *Service) UpdateProject(ctx context.Context, userID, projectID, name string, image *ImageUpload, removeImage bool) (map[string]any, error) {
	project, _, err := s.requireProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		project.Name = name
	}

	oldFileID := project.ImageFileID
	switch {
	case image != nil:
		fileID, imageURL, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		project.ImageFileID = fileID
		project.ImageURL = imageURL
	case removeImage:
		project.ImageFileID = ""
		project.ImageURL = ""
	}

	if err := s.store.UpdateProject(ctx, project.ID, project.Name, project.ImageURL, project.ImageFileID); err != nil {
		return nil, err
	}
	if oldFileID != project.ImageFileID {
		s.dropImage(ctx, oldFileID)
	}

	updated, err := s.store.GetProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	s.indexProject(updated)
	return projectView(updated), nil
}

func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) (map[string]any, error) {
	project, _, err := s.requireProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.deleteProjectCascade(ctx, project); err != nil {
		return nil, err
	}
	return map[string]any{"id": project.ID}, nil
}

func (s *Service) indexProject(p store.Project) {
	if s.search == nil {
		return
	}
	s.search.IndexProject(search.ProjectRecord{
		ID:          p.ID,
		Name:        p.Name,
		WorkspaceID: p.WorkspaceID,
	})
}
