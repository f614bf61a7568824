package app

import (
	"context"
	"log"

	"taskdeck/api/internal/store"
)

// deleteProjectCascade removes a project's tasks, then the project itself.
// Deletes of absent rows are no-ops, so a retry after a partial failure
// resumes where the last attempt stopped.
func (s *Service) deleteProjectCascade(ctx context.Context, project store.Project) error {
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		WorkspaceID: project.WorkspaceID,
		ProjectID:   project.ID,
	})
	if err != nil {
		return errLifecycle("tasks")
	}
	if err := s.store.DeleteTasksByProject(ctx, project.ID); err != nil {
		return errLifecycle("tasks")
	}
	if err := s.store.DeleteProject(ctx, project.ID); err != nil {
		return errLifecycle("projects")
	}

	if s.search != nil {
		for _, task := range tasks {
			s.search.DeleteTask(task.ID)
		}
		s.search.DeleteProject(project.ID)
	}
	s.dropImage(ctx, project.ImageFileID)
	return nil
}

// deleteWorkspaceCascade removes every project (tasks first), then the
// members, then the workspace row. Stages run deepest-first so that an
// interrupted delete never leaves a child pointing at a missing parent level
// below it.
func (s *Service) deleteWorkspaceCascade(ctx context.Context, workspaceID string) error {
	ws, wsErr := s.store.GetWorkspace(ctx, workspaceID)

	projectIDs, err := s.store.ListProjectIDs(ctx, workspaceID)
	if err != nil {
		return errLifecycle("projects")
	}
	for _, projectID := range projectIDs {
		project, err := s.store.GetProject(ctx, projectID)
		if err != nil {
			return errLifecycle("projects")
		}
		if err := s.deleteProjectCascade(ctx, project); err != nil {
			return err
		}
	}

	if err := s.store.DeleteMembersByWorkspace(ctx, workspaceID); err != nil {
		return errLifecycle("members")
	}
	if err := s.store.DeleteWorkspace(ctx, workspaceID); err != nil {
		return errLifecycle("workspace")
	}

	if wsErr == nil {
		s.dropImage(ctx, ws.ImageFileID)
	} else {
		log.Printf("lifecycle: workspace %s image cleanup skipped: %v", workspaceID, wsErr)
	}
	return nil
}
