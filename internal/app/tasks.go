package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"taskdeck/api/internal/search"
	"taskdeck/api/internal/store"
	"taskdeck/api/internal/util"
)

const maxBulkPosition = 1_000_000

type CreateTaskInput struct {
	WorkspaceID string     `json:"workspaceId"`
	ProjectID   string     `json:"projectId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AssigneeID  *string    `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate"`
}

// UpdateTaskInput uses pointers for partial updates: nil means "leave as is".
// An empty assigneeId clears the assignment.
type UpdateTaskInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	ProjectID   *string    `json:"projectId"`
	AssigneeID  *string    `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate"`
}

type TaskQuery struct {
	WorkspaceID string
	ProjectID   string
	Status      string
	AssigneeID  string
	DueDate     *time.Time
	Search      string
}

type BulkTaskUpdate struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

// taskCache memoizes project and assignee lookups while a listing is
// enriched, so N tasks in one project cost one project read.
type taskCache struct {
	projects map[string]*store.Project
	members  map[string]*store.MemberWithUser
}

func newTaskCache() *taskCache {
	return &taskCache{
		projects: make(map[string]*store.Project),
		members:  make(map[string]*store.MemberWithUser),
	}
}

func (s *Service) cachedProject(ctx context.Context, cache *taskCache, projectID string) (*store.Project, error) {
	if p, ok := cache.projects[projectID]; ok {
		return p, nil
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			cache.projects[projectID] = nil
			return nil, nil
		}
		return nil, err
	}
	cache.projects[projectID] = &project
	return &project, nil
}

func (s *Service) cachedAssignee(ctx context.Context, cache *taskCache, memberID string) (*store.MemberWithUser, error) {
	if m, ok := cache.members[memberID]; ok {
		return m, nil
	}
	member, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			cache.members[memberID] = nil
			return nil, nil
		}
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, member.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	enriched := &store.MemberWithUser{Member: member, UserName: user.Name, UserEmail: user.Email}
	cache.members[memberID] = enriched
	return enriched, nil
}

// taskView is the enriched read-side shape: the raw row plus the project and
// assignee summaries the board renders.
func (s *Service) taskView(ctx context.Context, cache *taskCache, t store.Task) (map[string]any, error) {
	item := map[string]any{
		"id":          t.ID,
		"workspaceId": t.WorkspaceID,
		"projectId":   t.ProjectID,
		"name":        t.Name,
		"description": t.Description,
		"status":      t.Status,
		"assigneeId":  t.AssigneeID,
		"dueDate":     t.DueDate,
		"position":    t.Position,
		"createdAt":   t.CreatedAt,
		"updatedAt":   t.UpdatedAt,
	}

	project, err := s.cachedProject(ctx, cache, t.ProjectID)
	if err != nil {
		return nil, err
	}
	if project != nil {
		item["project"] = map[string]any{
			"id":       project.ID,
			"name":     project.Name,
			"imageUrl": project.ImageURL,
		}
	} else {
		item["project"] = nil
	}

	if t.AssigneeID != nil && *t.AssigneeID != "" {
		assignee, err := s.cachedAssignee(ctx, cache, *t.AssigneeID)
		if err != nil {
			return nil, err
		}
		if assignee != nil {
			item["assignee"] = map[string]any{
				"id":    assignee.ID,
				"name":  assignee.UserName,
				"email": assignee.UserEmail,
			}
		} else {
			item["assignee"] = nil
		}
	} else {
		item["assignee"] = nil
	}
	return item, nil
}

// requireTask resolves a task and the caller's membership in its workspace.
// A missing task reads as Unauthorized.
func (s *Service) requireTask(ctx context.Context, userID, taskID string) (store.Task, store.Member, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, store.Member{}, errUnauthorized()
		}
		return store.Task{}, store.Member{}, err
	}
	member, err := s.requireMember(ctx, task.WorkspaceID, userID)
	if err != nil {
		return store.Task{}, store.Member{}, err
	}
	return task, member, nil
}

// checkAssignee verifies that an assignee id names a member of the given
// workspace. Empty means unassigned and is always fine.
func (s *Service) checkAssignee(ctx context.Context, workspaceID string, assigneeID *string) error {
	if assigneeID == nil || *assigneeID == "" {
		return nil
	}
	member, err := s.store.GetMemberByID(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errValidation("assignee is not a member of this workspace")
		}
		return err
	}
	if member.WorkspaceID != workspaceID {
		return errValidation("assignee is not a member of this workspace")
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, userID string, input CreateTaskInput) (map[string]any, error) {
	if _, err := s.requireMember(ctx, input.WorkspaceID, userID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errValidation("name is required")
	}
	if !store.ValidStatus(input.Status) {
		return nil, errValidation("invalid status")
	}
	if input.ProjectID == "" {
		return nil, errValidation("projectId is required")
	}
	project, err := s.store.GetProject(ctx, input.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errValidation("project does not exist")
		}
		return nil, err
	}
	if project.WorkspaceID != input.WorkspaceID {
		return nil, errValidation("project belongs to a different workspace")
	}
	if err := s.checkAssignee(ctx, input.WorkspaceID, input.AssigneeID); err != nil {
		return nil, err
	}

	position, err := s.nextPosition(ctx, input.WorkspaceID, input.Status)
	if err != nil {
		return nil, err
	}

	task := store.Task{
		ID:          util.NewID("tsk"),
		WorkspaceID: input.WorkspaceID,
		ProjectID:   input.ProjectID,
		Name:        name,
		Description: input.Description,
		Status:      input.Status,
		AssigneeID:  input.AssigneeID,
		DueDate:     input.DueDate,
		Position:    position,
	}
	created, err := s.store.InsertTask(ctx, task)
	if err != nil {
		return nil, err
	}

	s.indexTask(created)
	return s.taskView(ctx, newTaskCache(), created)
}

func (s *Service) ListTasks(ctx context.Context, userID string, query TaskQuery) ([]map[string]any, error) {
	if _, err := s.requireMember(ctx, query.WorkspaceID, userID); err != nil {
		return nil, err
	}
	if query.Status != "" && !store.ValidStatus(query.Status) {
		return nil, errValidation("invalid status")
	}

	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		WorkspaceID: query.WorkspaceID,
		ProjectID:   query.ProjectID,
		Status:      query.Status,
		AssigneeID:  query.AssigneeID,
		DueDate:     query.DueDate,
		Search:      query.Search,
	})
	if err != nil {
		return nil, err
	}

	cache := newTaskCache()
	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		item, err := s.taskView(ctx, cache, task)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) GetTask(ctx context.Context, userID, taskID string) (map[string]any, error) {
	task, _, err := s.requireTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	return s.taskView(ctx, newTaskCache(), task)
}

func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, input UpdateTaskInput) (map[string]any, error) {
	task, _, err := s.requireTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errValidation("name cannot be empty")
		}
		task.Name = name
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.ProjectID != nil && *input.ProjectID != task.ProjectID {
		project, err := s.store.GetProject(ctx, *input.ProjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, errValidation("project does not exist")
			}
			return nil, err
		}
		if project.WorkspaceID != task.WorkspaceID {
			return nil, errValidation("project belongs to a different workspace")
		}
		task.ProjectID = project.ID
	}
	if input.AssigneeID != nil {
		if err := s.checkAssignee(ctx, task.WorkspaceID, input.AssigneeID); err != nil {
			return nil, err
		}
		if *input.AssigneeID == "" {
			task.AssigneeID = nil
		} else {
			task.AssigneeID = input.AssigneeID
		}
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.Status != nil && *input.Status != task.Status {
		if !store.ValidStatus(*input.Status) {
			return nil, errValidation("invalid status")
		}
		// A status change re-appends the task at the tail of its new bucket.
		position, err := s.nextPosition(ctx, task.WorkspaceID, *input.Status)
		if err != nil {
			return nil, err
		}
		task.Status = *input.Status
		task.Position = position
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	updated, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	s.indexTask(updated)
	return s.taskView(ctx, newTaskCache(), updated)
}

func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) (map[string]any, error) {
	task, _, err := s.requireTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteTask(ctx, task.ID); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.DeleteTask(task.ID)
	}
	return map[string]any{"id": task.ID}, nil
}

// BulkUpdateTasks persists a drag-and-drop board rearrangement. Every task in
// the batch must live in one workspace the caller belongs to; positions come
// from the client and buckets that end up cramped are renumbered afterwards.
func (s *Service) BulkUpdateTasks(ctx context.Context, userID string, updates []BulkTaskUpdate) ([]map[string]any, error) {
	if len(updates) == 0 {
		return nil, errValidation("tasks are required")
	}

	workspaceID := ""
	tasks := make([]store.Task, 0, len(updates))
	for _, update := range updates {
		if !store.ValidStatus(update.Status) {
			return nil, errValidation("invalid status")
		}
		if update.Position < 1 || update.Position > maxBulkPosition {
			return nil, errValidation("position out of range")
		}
		task, err := s.store.GetTask(ctx, update.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, errUnauthorized()
			}
			return nil, err
		}
		if workspaceID == "" {
			workspaceID = task.WorkspaceID
		} else if task.WorkspaceID != workspaceID {
			return nil, errValidation("tasks span multiple workspaces")
		}
		tasks = append(tasks, task)
	}
	if _, err := s.requireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	type bucket struct{ workspaceID, status string }
	touched := make(map[bucket]struct{})
	for i, update := range updates {
		if err := s.store.UpdateTaskPlacement(ctx, update.ID, update.Status, update.Position); err != nil {
			return nil, err
		}
		touched[bucket{workspaceID, tasks[i].Status}] = struct{}{}
		touched[bucket{workspaceID, update.Status}] = struct{}{}
	}

	for b := range touched {
		bucketTasks, err := s.store.ListBucket(ctx, b.workspaceID, b.status)
		if err != nil {
			return nil, err
		}
		positions := make([]int, len(bucketTasks))
		for i, task := range bucketTasks {
			positions[i] = task.Position
		}
		if bucketNeedsRebalance(positions) {
			if err := s.rebalanceBucket(ctx, b.workspaceID, b.status); err != nil {
				return nil, err
			}
		}
	}

	cache := newTaskCache()
	items := make([]map[string]any, 0, len(updates))
	for _, update := range updates {
		task, err := s.store.GetTask(ctx, update.ID)
		if err != nil {
			return nil, err
		}
		s.indexTask(task)
		item, err := s.taskView(ctx, cache, task)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) indexTask(t store.Task) {
	if s.search == nil {
		return
	}
	s.search.IndexTask(search.TaskRecord{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		WorkspaceID: t.WorkspaceID,
		ProjectID:   t.ProjectID,
		Status:      t.Status,
	})
}
