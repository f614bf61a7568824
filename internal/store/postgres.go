package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Name, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email=$1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.name, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) InsertWorkspace(ctx context.Context, ws Workspace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, user_id, image_url, image_file_id, invite_code)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ws.ID, ws.Name, ws.UserID, ws.ImageURL, ws.ImageFileID, ws.InviteCode)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var ws Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, user_id, image_url, image_file_id, invite_code, created_at, updated_at
		FROM workspaces
		WHERE id=$1
	`, workspaceID).Scan(&ws.ID, &ws.Name, &ws.UserID, &ws.ImageURL, &ws.ImageFileID, &ws.InviteCode, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.user_id, w.image_url, w.image_file_id, w.invite_code, w.created_at, w.updated_at
		FROM workspaces w
		JOIN members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]Workspace, 0)
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.UserID, &ws.ImageURL, &ws.ImageFileID, &ws.InviteCode, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspaceID, name, imageURL, imageFileID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workspaces
		SET name=$2, image_url=$3, image_file_id=$4, updated_at=NOW()
		WHERE id=$1
	`, workspaceID, name, imageURL, imageFileID)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateInviteCode(ctx context.Context, workspaceID, code string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE workspaces SET invite_code=$2, updated_at=NOW() WHERE id=$1`, workspaceID, code)
	if err != nil {
		return fmt.Errorf("update invite code: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id=$1`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMember(ctx context.Context, workspaceID, userID string) (Member, error) {
	var m Member
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, user_id, role, created_at
		FROM members
		WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID).Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

func (s *PostgresStore) GetMemberByID(ctx context.Context, memberID string) (Member, error) {
	var m Member
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, user_id, role, created_at
		FROM members
		WHERE id=$1
	`, memberID).Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, workspaceID string) ([]MemberWithUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.workspace_id, m.user_id, m.role, m.created_at, u.name, u.email
		FROM members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1
		ORDER BY m.created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]MemberWithUser, 0)
	for rows.Next() {
		var m MemberWithUser
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt, &m.UserName, &m.UserEmail); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMember(ctx context.Context, m Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, workspace_id, user_id, role)
		VALUES ($1, $2, $3, $4)
	`, m.ID, m.WorkspaceID, m.UserID, m.Role)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMemberRole(ctx context.Context, memberID, role string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE members SET role=$2 WHERE id=$1`, memberID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMember(ctx context.Context, memberID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id=$1`, memberID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMembersByWorkspace(ctx context.Context, workspaceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE workspace_id=$1`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace members: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountMembers(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE workspace_id=$1`, workspaceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountAdmins(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE workspace_id=$1 AND role=$2`, workspaceID, RoleAdmin).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, p Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, workspace_id, name, image_url, image_file_id)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.WorkspaceID, p.Name, p.ImageURL, p.ImageFileID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, image_url, image_file_id, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.ImageURL, &p.ImageFileID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, workspaceID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, image_url, image_file_id, created_at, updated_at
		FROM projects
		WHERE workspace_id=$1
		ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.ImageURL, &p.ImageFileID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListProjectIDs(ctx context.Context, workspaceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM projects WHERE workspace_id=$1 ORDER BY created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID, name, imageURL, imageFileID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name=$2, image_url=$3, image_file_id=$4, updated_at=NOW()
		WHERE id=$1
	`, projectID, name, imageURL, imageFileID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, t Task) (Task, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, workspace_id, project_id, name, description, status, assignee_id, due_date, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, t.ID, t.WorkspaceID, t.ProjectID, t.Name, t.Description, t.Status, t.AssigneeID, t.DueDate, t.Position).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	var t Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, project_id, name, description, status, assignee_id, due_date, position, created_at, updated_at
		FROM tasks
		WHERE id=$1
	`, taskID).Scan(&t.ID, &t.WorkspaceID, &t.ProjectID, &t.Name, &t.Description, &t.Status, &t.AssigneeID, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET project_id=$2, name=$3, description=$4, status=$5, assignee_id=$6, due_date=$7, position=$8, updated_at=NOW()
		WHERE id=$1
	`, t.ID, t.ProjectID, t.Name, t.Description, t.Status, t.AssigneeID, t.DueDate, t.Position)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTaskPlacement(ctx context.Context, taskID, status string, position int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status=$2, position=$3, updated_at=NOW() WHERE id=$1
	`, taskID, status, position)
	if err != nil {
		return fmt.Errorf("update task placement: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTasksByProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE project_id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project tasks: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	var dueDate sql.NullTime
	if f.DueDate != nil {
		dueDate = sql.NullTime{Time: *f.DueDate, Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, project_id, name, description, status, assignee_id, due_date, position, created_at, updated_at
		FROM tasks
		WHERE workspace_id=$1
		  AND ($2='' OR project_id=$2)
		  AND ($3='' OR status=$3)
		  AND ($4='' OR assignee_id=$4)
		  AND ($5::timestamptz IS NULL OR due_date=$5)
		  AND ($6='' OR name ILIKE '%' || $6 || '%')
		ORDER BY created_at DESC
	`, f.WorkspaceID, f.ProjectID, f.Status, f.AssigneeID, dueDate, f.Search)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *PostgresStore) ListBucket(ctx context.Context, workspaceID, status string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, project_id, name, description, status, assignee_id, due_date, position, created_at, updated_at
		FROM tasks
		WHERE workspace_id=$1 AND status=$2
		ORDER BY position ASC, created_at ASC
	`, workspaceID, status)
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	items := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.ProjectID, &t.Name, &t.Description, &t.Status, &t.AssigneeID, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MaxTaskPosition(ctx context.Context, workspaceID, status string) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) FROM tasks WHERE workspace_id=$1 AND status=$2
	`, workspaceID, status).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max task position: %w", err)
	}
	return max, nil
}

func (s *PostgresStore) CountTasks(ctx context.Context, f TaskCountFilter) (int, error) {
	after, before := ">", "<"
	if f.CreatedInclusive {
		after, before = ">=", "<="
	}
	var dueBefore sql.NullTime
	if f.DueBefore != nil {
		dueBefore = sql.NullTime{Time: *f.DueBefore, Valid: true}
	}
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM tasks
		WHERE workspace_id=$1
		  AND ($2='' OR project_id=$2)
		  AND ($3='' OR assignee_id=$3)
		  AND ($4='' OR status=$4)
		  AND ($5='' OR status<>$5)
		  AND ($6::timestamptz IS NULL OR due_date<$6)
		  AND created_at %s $7
		  AND created_at %s $8
	`, after, before)
	var count int
	err := s.db.QueryRowContext(ctx, query,
		f.WorkspaceID, f.ProjectID, f.AssigneeID, f.Status, f.NotStatus, dueBefore, f.CreatedAfter, f.CreatedBefore).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure.
// Used to turn a duplicate member insert into a domain error instead of a 500.
func IsUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var pgErr coder
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
