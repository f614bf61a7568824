package store

import "time"

const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

const (
	StatusBacklog    = "BACKLOG"
	StatusTodo       = "TODO"
	StatusInProgress = "IN_PROGRESS"
	StatusInReview   = "IN_REVIEW"
	StatusDone       = "DONE"
)

// ValidStatus reports whether s is one of the five task statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Workspace struct {
	ID          string
	Name        string
	UserID      string
	ImageURL    string
	ImageFileID string
	InviteCode  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Member struct {
	ID          string
	WorkspaceID string
	UserID      string
	Role        string
	CreatedAt   time.Time
}

// MemberWithUser carries the joined identity fields for API responses.
// The stored member row itself only holds the user id.
type MemberWithUser struct {
	Member
	UserName  string
	UserEmail string
}

type Project struct {
	ID          string
	WorkspaceID string
	Name        string
	ImageURL    string
	ImageFileID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Task struct {
	ID          string
	WorkspaceID string
	ProjectID   string
	Name        string
	Description string
	Status      string
	AssigneeID  *string
	DueDate     *time.Time
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskFilter narrows a task listing. Zero values mean "no constraint".
type TaskFilter struct {
	WorkspaceID string
	ProjectID   string
	Status      string
	AssigneeID  string
	DueDate     *time.Time
	Search      string
}

// TaskCountFilter selects tasks for a single analytics metric.
// CreatedInclusive picks >=/<= over strict >/< for the created_at window;
// the two conventions coexist across metrics and both must stay available.
type TaskCountFilter struct {
	WorkspaceID      string
	ProjectID        string
	AssigneeID       string
	Status           string
	NotStatus        string
	DueBefore        *time.Time
	CreatedAfter     time.Time
	CreatedBefore    time.Time
	CreatedInclusive bool
}
