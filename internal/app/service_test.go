package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"taskdeck/api/internal/config"
	"taskdeck/api/internal/store"
)

type fakeStore struct {
	createUserFn               func(context.Context, store.User) error
	getUserByEmailFn           func(context.Context, string) (store.User, error)
	getUserByIDFn              func(context.Context, string) (store.User, error)
	lookupRefreshSessionFn     func(context.Context, string) (store.User, error)
	isAccessTokenRevokedFn     func(context.Context, string) (bool, error)
	insertWorkspaceFn          func(context.Context, store.Workspace) error
	getWorkspaceFn             func(context.Context, string) (store.Workspace, error)
	listWorkspacesForUserFn    func(context.Context, string) ([]store.Workspace, error)
	updateWorkspaceFn          func(context.Context, string, string, string, string) error
	updateInviteCodeFn         func(context.Context, string, string) error
	deleteWorkspaceFn          func(context.Context, string) error
	getMemberFn                func(context.Context, string, string) (store.Member, error)
	getMemberByIDFn            func(context.Context, string) (store.Member, error)
	listMembersFn              func(context.Context, string) ([]store.MemberWithUser, error)
	insertMemberFn             func(context.Context, store.Member) error
	updateMemberRoleFn         func(context.Context, string, string) error
	deleteMemberFn             func(context.Context, string) error
	deleteMembersByWorkspaceFn func(context.Context, string) error
	countMembersFn             func(context.Context, string) (int, error)
	countAdminsFn              func(context.Context, string) (int, error)
	insertProjectFn            func(context.Context, store.Project) error
	getProjectFn               func(context.Context, string) (store.Project, error)
	listProjectsFn             func(context.Context, string) ([]store.Project, error)
	listProjectIDsFn           func(context.Context, string) ([]string, error)
	updateProjectFn            func(context.Context, string, string, string, string) error
	deleteProjectFn            func(context.Context, string) error
	insertTaskFn               func(context.Context, store.Task) (store.Task, error)
	getTaskFn                  func(context.Context, string) (store.Task, error)
	updateTaskFn               func(context.Context, store.Task) error
	updateTaskPlacementFn      func(context.Context, string, string, int) error
	deleteTaskFn               func(context.Context, string) error
	deleteTasksByProjectFn     func(context.Context, string) error
	listTasksFn                func(context.Context, store.TaskFilter) ([]store.Task, error)
	listBucketFn               func(context.Context, string, string) ([]store.Task, error)
	maxTaskPositionFn          func(context.Context, string, string) (int, error)
	countTasksFn               func(context.Context, store.TaskCountFilter) (int, error)
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, Name: "Test User", Email: "test@example.com"}, nil
}
func (f *fakeStore) SaveRefreshSession(context.Context, string, string, time.Time) error { return nil }
func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(context.Context, string) error        { return nil }
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}
func (f *fakeStore) InsertWorkspace(ctx context.Context, ws store.Workspace) error {
	if f.insertWorkspaceFn != nil {
		return f.insertWorkspaceFn(ctx, ws)
	}
	return nil
}
func (f *fakeStore) GetWorkspace(ctx context.Context, workspaceID string) (store.Workspace, error) {
	if f.getWorkspaceFn != nil {
		return f.getWorkspaceFn(ctx, workspaceID)
	}
	return store.Workspace{}, sql.ErrNoRows
}
func (f *fakeStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]store.Workspace, error) {
	if f.listWorkspacesForUserFn != nil {
		return f.listWorkspacesForUserFn(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateWorkspace(ctx context.Context, workspaceID, name, imageURL, imageFileID string) error {
	if f.updateWorkspaceFn != nil {
		return f.updateWorkspaceFn(ctx, workspaceID, name, imageURL, imageFileID)
	}
	return nil
}
func (f *fakeStore) UpdateInviteCode(ctx context.Context, workspaceID, code string) error {
	if f.updateInviteCodeFn != nil {
		return f.updateInviteCodeFn(ctx, workspaceID, code)
	}
	return nil
}
func (f *fakeStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	if f.deleteWorkspaceFn != nil {
		return f.deleteWorkspaceFn(ctx, workspaceID)
	}
	return nil
}
func (f *fakeStore) GetMember(ctx context.Context, workspaceID, userID string) (store.Member, error) {
	if f.getMemberFn != nil {
		return f.getMemberFn(ctx, workspaceID, userID)
	}
	return store.Member{}, sql.ErrNoRows
}
func (f *fakeStore) GetMemberByID(ctx context.Context, memberID string) (store.Member, error) {
	if f.getMemberByIDFn != nil {
		return f.getMemberByIDFn(ctx, memberID)
	}
	return store.Member{}, sql.ErrNoRows
}
func (f *fakeStore) ListMembers(ctx context.Context, workspaceID string) ([]store.MemberWithUser, error) {
	if f.listMembersFn != nil {
		return f.listMembersFn(ctx, workspaceID)
	}
	return nil, nil
}
func (f *fakeStore) InsertMember(ctx context.Context, m store.Member) error {
	if f.insertMemberFn != nil {
		return f.insertMemberFn(ctx, m)
	}
	return nil
}
func (f *fakeStore) UpdateMemberRole(ctx context.Context, memberID, role string) error {
	if f.updateMemberRoleFn != nil {
		return f.updateMemberRoleFn(ctx, memberID, role)
	}
	return nil
}
func (f *fakeStore) DeleteMember(ctx context.Context, memberID string) error {
	if f.deleteMemberFn != nil {
		return f.deleteMemberFn(ctx, memberID)
	}
	return nil
}
func (f *fakeStore) DeleteMembersByWorkspace(ctx context.Context, workspaceID string) error {
	if f.deleteMembersByWorkspaceFn != nil {
		return f.deleteMembersByWorkspaceFn(ctx, workspaceID)
	}
	return nil
}
func (f *fakeStore) CountMembers(ctx context.Context, workspaceID string) (int, error) {
	if f.countMembersFn != nil {
		return f.countMembersFn(ctx, workspaceID)
	}
	return 0, nil
}
func (f *fakeStore) CountAdmins(ctx context.Context, workspaceID string) (int, error) {
	if f.countAdminsFn != nil {
		return f.countAdminsFn(ctx, workspaceID)
	}
	return 0, nil
}
func (f *fakeStore) InsertProject(ctx context.Context, p store.Project) error {
	if f.insertProjectFn != nil {
		return f.insertProjectFn(ctx, p)
	}
	return nil
}
func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) ListProjects(ctx context.Context, workspaceID string) ([]store.Project, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx, workspaceID)
	}
	return nil, nil
}
func (f *fakeStore) ListProjectIDs(ctx context.Context, workspaceID string) ([]string, error) {
	if f.listProjectIDsFn != nil {
		return f.listProjectIDsFn(ctx, workspaceID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateProject(ctx context.Context, projectID, name, imageURL, imageFileID string) error {
	if f.updateProjectFn != nil {
		return f.updateProjectFn(ctx, projectID, name, imageURL, imageFileID)
	}
	return nil
}
func (f *fakeStore) DeleteProject(ctx context.Context, projectID string) error {
	if f.deleteProjectFn != nil {
		return f.deleteProjectFn(ctx, projectID)
	}
	return nil
}
func (f *fakeStore) InsertTask(ctx context.Context, t store.Task) (store.Task, error) {
	if f.insertTaskFn != nil {
		return f.insertTaskFn(ctx, t)
	}
	return t, nil
}
func (f *fakeStore) GetTask(ctx context.Context, taskID string) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, taskID)
	}
	return store.Task{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateTask(ctx context.Context, t store.Task) error {
	if f.updateTaskFn != nil {
		return f.updateTaskFn(ctx, t)
	}
	return nil
}
func (f *fakeStore) UpdateTaskPlacement(ctx context.Context, taskID, status string, position int) error {
	if f.updateTaskPlacementFn != nil {
		return f.updateTaskPlacementFn(ctx, taskID, status, position)
	}
	return nil
}
func (f *fakeStore) DeleteTask(ctx context.Context, taskID string) error {
	if f.deleteTaskFn != nil {
		return f.deleteTaskFn(ctx, taskID)
	}
	return nil
}
func (f *fakeStore) DeleteTasksByProject(ctx context.Context, projectID string) error {
	if f.deleteTasksByProjectFn != nil {
		return f.deleteTasksByProjectFn(ctx, projectID)
	}
	return nil
}
func (f *fakeStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) ListBucket(ctx context.Context, workspaceID, status string) ([]store.Task, error) {
	if f.listBucketFn != nil {
		return f.listBucketFn(ctx, workspaceID, status)
	}
	return nil, nil
}
func (f *fakeStore) MaxTaskPosition(ctx context.Context, workspaceID, status string) (int, error) {
	if f.maxTaskPositionFn != nil {
		return f.maxTaskPositionFn(ctx, workspaceID, status)
	}
	return 0, nil
}
func (f *fakeStore) CountTasks(ctx context.Context, filter store.TaskCountFilter) (int, error) {
	if f.countTasksFn != nil {
		return f.countTasksFn(ctx, filter)
	}
	return 0, nil
}
func (f *fakeStore) Ping(context.Context) error { return nil }

func newTestService(fs *fakeStore) *Service {
	svc := &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store: fs,
	}
	svc.sessions = pgSessions{store: fs}
	return svc
}

// memberOf wires GetMember so that exactly one (workspace, user, role) tuple
// resolves; everything else is a missing membership.
func memberOf(workspaceID, userID, role string) func(context.Context, string, string) (store.Member, error) {
	return func(_ context.Context, ws, user string) (store.Member, error) {
		if ws == workspaceID && user == userID {
			return store.Member{ID: "mbr_1", WorkspaceID: ws, UserID: user, Role: role}, nil
		}
		return store.Member{}, sql.ErrNoRows
	}
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError with code %s, got %v", code, err)
	}
	if domainErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, domainErr.Code, domainErr.Message)
	}
}

func TestNonMemberCannotReadWorkspace(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, Name: "Team"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.GetWorkspace(context.Background(), "usr_outsider", "wks_1")
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestMissingWorkspaceReadsAsUnauthorized(t *testing.T) {
	svc := newTestService(&fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
	})

	// The workspace id exists in no table; membership lookup fails first and
	// the caller cannot distinguish absence from denial.
	_, err := svc.GetWorkspace(context.Background(), "usr_1", "wks_ghost")
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestMemberCannotDeleteWorkspace(t *testing.T) {
	svc := newTestService(&fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
	})

	_, err := svc.DeleteWorkspace(context.Background(), "usr_1", "wks_1")
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestMemberCannotResetInviteCode(t *testing.T) {
	svc := newTestService(&fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
	})

	_, err := svc.ResetInviteCode(context.Background(), "usr_1", "wks_1")
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestAdminResetRotatesWholeCode(t *testing.T) {
	var savedCode string
	fs := &fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleAdmin),
		updateInviteCodeFn: func(_ context.Context, _ string, code string) error {
			savedCode = code
			return nil
		},
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, InviteCode: savedCode}, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.ResetInviteCode(context.Background(), "usr_1", "wks_1")
	if err != nil {
		t.Fatalf("ResetInviteCode: %v", err)
	}
	if len(savedCode) != 6 {
		t.Fatalf("expected a fresh 6-char code, got %q", savedCode)
	}
	if payload["inviteCode"] != savedCode {
		t.Fatalf("expected response to carry rotated code")
	}
}

func TestJoinWithWrongCodeIsRejected(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, InviteCode: "AbC123"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.JoinWorkspace(context.Background(), "usr_2", "wks_1", "abc123")
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestJoinTwiceReportsAlreadyMember(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, InviteCode: "AbC123"}, nil
		},
		getMemberFn: memberOf("wks_1", "usr_2", store.RoleMember),
	}
	svc := newTestService(fs)

	_, err := svc.JoinWorkspace(context.Background(), "usr_2", "wks_1", "AbC123")
	assertDomainCode(t, err, "ALREADY_MEMBER")
}

func TestStaleCodeStopsWorkingAfterRotation(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			// Rotation already happened; the workspace only knows the new code.
			return store.Workspace{ID: id, InviteCode: "NewOne"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.JoinWorkspace(context.Background(), "usr_3", "wks_1", "OldOne")
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestJoinWithRightCodeCreatesMember(t *testing.T) {
	var inserted store.Member
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, InviteCode: "AbC123"}, nil
		},
		insertMemberFn: func(_ context.Context, m store.Member) error {
			inserted = m
			return nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.JoinWorkspace(context.Background(), "usr_2", "wks_1", "AbC123"); err != nil {
		t.Fatalf("JoinWorkspace: %v", err)
	}
	if inserted.Role != store.RoleMember {
		t.Fatalf("joiner must come in as MEMBER, got %q", inserted.Role)
	}
	if inserted.WorkspaceID != "wks_1" || inserted.UserID != "usr_2" {
		t.Fatalf("unexpected member row: %+v", inserted)
	}
}

func TestCreateWorkspaceMakesCreatorAdmin(t *testing.T) {
	var insertedWS store.Workspace
	var insertedMember store.Member
	fs := &fakeStore{
		insertWorkspaceFn: func(_ context.Context, ws store.Workspace) error {
			insertedWS = ws
			return nil
		},
		insertMemberFn: func(_ context.Context, m store.Member) error {
			insertedMember = m
			return nil
		},
	}
	fs.getWorkspaceFn = func(_ context.Context, id string) (store.Workspace, error) {
		return insertedWS, nil
	}
	svc := newTestService(fs)

	if _, err := svc.CreateWorkspace(context.Background(), "usr_1", "Team Phoenix", nil); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if insertedMember.Role != store.RoleAdmin {
		t.Fatalf("creator must be ADMIN, got %q", insertedMember.Role)
	}
	if insertedMember.WorkspaceID != insertedWS.ID {
		t.Fatalf("member must belong to the new workspace")
	}
	if len(insertedWS.InviteCode) != 6 {
		t.Fatalf("expected generated invite code, got %q", insertedWS.InviteCode)
	}
}

func TestCreateWorkspaceRequiresName(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateWorkspace(context.Background(), "usr_1", "   ", nil)
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestTaskReadsAreMembershipGated(t *testing.T) {
	fs := &fakeStore{
		getTaskFn: func(_ context.Context, id string) (store.Task, error) {
			return store.Task{ID: id, WorkspaceID: "wks_1", ProjectID: "prj_1"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.GetTask(context.Background(), "usr_outsider", "tsk_1")
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestMissingTaskReadsAsUnauthorized(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.GetTask(context.Background(), "usr_1", "tsk_ghost")
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestCreateTaskRejectsForeignProject(t *testing.T) {
	fs := &fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
		getProjectFn: func(_ context.Context, id string) (store.Project, error) {
			return store.Project{ID: id, WorkspaceID: "wks_other"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateTask(context.Background(), "usr_1", CreateTaskInput{
		WorkspaceID: "wks_1",
		ProjectID:   "prj_foreign",
		Name:        "Ship it",
		Status:      store.StatusTodo,
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestCreateTaskRejectsNonMemberAssignee(t *testing.T) {
	fs := &fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
		getProjectFn: func(_ context.Context, id string) (store.Project, error) {
			return store.Project{ID: id, WorkspaceID: "wks_1"}, nil
		},
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return store.Member{ID: id, WorkspaceID: "wks_other"}, nil
		},
	}
	svc := newTestService(fs)

	assignee := "mbr_foreign"
	_, err := svc.CreateTask(context.Background(), "usr_1", CreateTaskInput{
		WorkspaceID: "wks_1",
		ProjectID:   "prj_1",
		Name:        "Ship it",
		Status:      store.StatusTodo,
		AssigneeID:  &assignee,
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestStatusChangeReappendsToNewBucket(t *testing.T) {
	task := store.Task{
		ID:          "tsk_1",
		WorkspaceID: "wks_1",
		ProjectID:   "prj_1",
		Name:        "Ship it",
		Status:      store.StatusTodo,
		Position:    1000,
	}
	var updated store.Task
	fs := &fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
		getTaskFn: func(_ context.Context, id string) (store.Task, error) {
			if updated.ID != "" {
				return updated, nil
			}
			return task, nil
		},
		getProjectFn: func(_ context.Context, id string) (store.Project, error) {
			return store.Project{ID: id, WorkspaceID: "wks_1", Name: "Launch"}, nil
		},
		maxTaskPositionFn: func(_ context.Context, _, status string) (int, error) {
			if status != store.StatusInProgress {
				t.Fatalf("expected append position for new bucket, got %s", status)
			}
			return 4000, nil
		},
		updateTaskFn: func(_ context.Context, t store.Task) error {
			updated = t
			return nil
		},
	}
	svc := newTestService(fs)

	status := store.StatusInProgress
	if _, err := svc.UpdateTask(context.Background(), "usr_1", "tsk_1", UpdateTaskInput{Status: &status}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != store.StatusInProgress {
		t.Fatalf("expected status change, got %s", updated.Status)
	}
	if updated.Position != 5000 {
		t.Fatalf("expected tail position 5000 in new bucket, got %d", updated.Position)
	}
}

func TestBulkUpdateRejectsMixedWorkspaces(t *testing.T) {
	fs := &fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
		getTaskFn: func(_ context.Context, id string) (store.Task, error) {
			ws := "wks_1"
			if id == "tsk_b" {
				ws = "wks_2"
			}
			return store.Task{ID: id, WorkspaceID: ws, Status: store.StatusTodo}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.BulkUpdateTasks(context.Background(), "usr_1", []BulkTaskUpdate{
		{ID: "tsk_a", Status: store.StatusTodo, Position: 1000},
		{ID: "tsk_b", Status: store.StatusTodo, Position: 2000},
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestBulkUpdateRejectsOutOfRangePosition(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.BulkUpdateTasks(context.Background(), "usr_1", []BulkTaskUpdate{
		{ID: "tsk_a", Status: store.StatusTodo, Position: 0},
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestDemotingLastAdminIsRefused(t *testing.T) {
	fs := &fakeStore{
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return store.Member{ID: id, WorkspaceID: "wks_1", UserID: "usr_1", Role: store.RoleAdmin}, nil
		},
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleAdmin),
		countAdminsFn: func(context.Context, string) (int, error) {
			return 1, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateMemberRole(context.Background(), "usr_1", "mbr_1", store.RoleMember)
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestMemberCannotChangeRoles(t *testing.T) {
	fs := &fakeStore{
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return store.Member{ID: id, WorkspaceID: "wks_1", UserID: "usr_2", Role: store.RoleMember}, nil
		},
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
	}
	svc := newTestService(fs)

	_, err := svc.UpdateMemberRole(context.Background(), "usr_1", "mbr_2", store.RoleAdmin)
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestMemberCanRemoveThemself(t *testing.T) {
	var deleted string
	fs := &fakeStore{
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return store.Member{ID: "mbr_1", WorkspaceID: "wks_1", UserID: "usr_1", Role: store.RoleMember}, nil
		},
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
		countMembersFn: func(context.Context, string) (int, error) {
			return 3, nil
		},
		countAdminsFn: func(context.Context, string) (int, error) {
			return 1, nil
		},
		deleteMemberFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.DeleteMember(context.Background(), "usr_1", "mbr_1"); err != nil {
		t.Fatalf("DeleteMember: %v", err)
	}
	if deleted != "mbr_1" {
		t.Fatalf("expected mbr_1 deleted, got %q", deleted)
	}
}

func TestMemberCannotRemoveSomeoneElse(t *testing.T) {
	fs := &fakeStore{
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return store.Member{ID: "mbr_2", WorkspaceID: "wks_1", UserID: "usr_2", Role: store.RoleMember}, nil
		},
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
	}
	svc := newTestService(fs)

	_, err := svc.DeleteMember(context.Background(), "usr_1", "mbr_2")
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestRemovingOnlyMemberIsRefused(t *testing.T) {
	fs := &fakeStore{
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return store.Member{ID: "mbr_1", WorkspaceID: "wks_1", UserID: "usr_1", Role: store.RoleAdmin}, nil
		},
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleAdmin),
		countMembersFn: func(context.Context, string) (int, error) {
			return 1, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.DeleteMember(context.Background(), "usr_1", "mbr_1")
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestSignInWithUnknownEmailIsUnauthorized(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.SignIn(context.Background(), "nobody@example.com", "some password")
	assertDomainCode(t, err, "UNAUTHORIZED")
}

func TestSignUpRejectsBadEmail(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.SignUp(context.Background(), "Dana", "not-an-email", "long enough pw")
	assertDomainCode(t, err, "VALIDATION_ERROR")
}
