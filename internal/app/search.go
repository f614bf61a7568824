package app

import (
	"context"

	"taskdeck/api/internal/search"
)

// Search runs a membership-gated name search inside one workspace.
func (s *Service) Search(ctx context.Context, userID, workspaceID, text string, filterType search.ResultType, limit, offset int) (search.Response, error) {
	if _, err := s.requireMember(ctx, workspaceID, userID); err != nil {
		return search.Response{}, err
	}
	if filterType != "" && filterType != search.ResultProject && filterType != search.ResultTask {
		return search.Response{}, errValidation("type must be project or task")
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:        text,
		WorkspaceID: workspaceID,
		FilterType:  filterType,
		Limit:       limit,
		Offset:      offset,
	}), nil
}
