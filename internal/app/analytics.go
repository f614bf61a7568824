package app

import (
	"context"
	"time"

	"taskdeck/api/internal/store"
)

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, 0).Add(-time.Millisecond)
}

// WorkspaceAnalytics returns the month-over-month task metrics for a
// workspace the caller belongs to.
func (s *Service) WorkspaceAnalytics(ctx context.Context, userID, workspaceID string) (map[string]any, error) {
	member, err := s.requireMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	return s.computeAnalytics(ctx, workspaceID, "", member.ID, time.Now())
}

// ProjectAnalytics returns the same metrics narrowed to one project.
func (s *Service) ProjectAnalytics(ctx context.Context, userID, projectID string) (map[string]any, error) {
	project, member, err := s.requireProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.computeAnalytics(ctx, project.WorkspaceID, project.ID, member.ID, time.Now())
}

// computeAnalytics runs ten independent counts: five predicates over the
// current and the previous calendar month. The "all" and "assigned" counts
// use strict created_at bounds, the status-based ones inclusive bounds.
func (s *Service) computeAnalytics(ctx context.Context, workspaceID, projectID, memberID string, now time.Time) (map[string]any, error) {
	thisStart, thisEnd := startOfMonth(now), endOfMonth(now)
	lastStart := thisStart.AddDate(0, -1, 0)
	lastEnd := endOfMonth(lastStart)

	base := store.TaskCountFilter{WorkspaceID: workspaceID, ProjectID: projectID}

	metrics := []struct {
		key       string
		inclusive bool
		with      func(f store.TaskCountFilter) store.TaskCountFilter
	}{
		{"task", false, func(f store.TaskCountFilter) store.TaskCountFilter {
			return f
		}},
		{"assignedTask", false, func(f store.TaskCountFilter) store.TaskCountFilter {
			f.AssigneeID = memberID
			return f
		}},
		{"incompleteTask", true, func(f store.TaskCountFilter) store.TaskCountFilter {
			f.NotStatus = store.StatusDone
			return f
		}},
		{"completeTask", true, func(f store.TaskCountFilter) store.TaskCountFilter {
			f.Status = store.StatusDone
			return f
		}},
		{"overdueTask", true, func(f store.TaskCountFilter) store.TaskCountFilter {
			f.NotStatus = store.StatusDone
			f.DueBefore = &now
			return f
		}},
	}

	payload := make(map[string]any, len(metrics)*2)
	for _, metric := range metrics {
		filter := metric.with(base)
		filter.CreatedInclusive = metric.inclusive

		filter.CreatedAfter, filter.CreatedBefore = thisStart, thisEnd
		thisCount, err := s.store.CountTasks(ctx, filter)
		if err != nil {
			return nil, err
		}

		filter.CreatedAfter, filter.CreatedBefore = lastStart, lastEnd
		lastCount, err := s.store.CountTasks(ctx, filter)
		if err != nil {
			return nil, err
		}

		payload[metric.key+"Count"] = thisCount
		payload[metric.key+"Difference"] = thisCount - lastCount
	}
	return payload, nil
}
