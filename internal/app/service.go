package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"taskdeck/api/internal/auth"
	"taskdeck/api/internal/authpw"
	"taskdeck/api/internal/config"
	"taskdeck/api/internal/imagestore"
	"taskdeck/api/internal/rbac"
	"taskdeck/api/internal/search"
	"taskdeck/api/internal/store"
	"taskdeck/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	UserEmail    string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	InsertWorkspace(context.Context, store.Workspace) error
	GetWorkspace(context.Context, string) (store.Workspace, error)
	ListWorkspacesForUser(context.Context, string) ([]store.Workspace, error)
	UpdateWorkspace(context.Context, string, string, string, string) error
	UpdateInviteCode(context.Context, string, string) error
	DeleteWorkspace(context.Context, string) error
	GetMember(context.Context, string, string) (store.Member, error)
	GetMemberByID(context.Context, string) (store.Member, error)
	ListMembers(context.Context, string) ([]store.MemberWithUser, error)
	InsertMember(context.Context, store.Member) error
	UpdateMemberRole(context.Context, string, string) error
	DeleteMember(context.Context, string) error
	DeleteMembersByWorkspace(context.Context, string) error
	CountMembers(context.Context, string) (int, error)
	CountAdmins(context.Context, string) (int, error)
	InsertProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjects(context.Context, string) ([]store.Project, error)
	ListProjectIDs(context.Context, string) ([]string, error)
	UpdateProject(context.Context, string, string, string, string) error
	DeleteProject(context.Context, string) error
	InsertTask(context.Context, store.Task) (store.Task, error)
	GetTask(context.Context, string) (store.Task, error)
	UpdateTask(context.Context, store.Task) error
	UpdateTaskPlacement(context.Context, string, string, int) error
	DeleteTask(context.Context, string) error
	DeleteTasksByProject(context.Context, string) error
	ListTasks(context.Context, store.TaskFilter) ([]store.Task, error)
	ListBucket(context.Context, string, string) ([]store.Task, error)
	MaxTaskPosition(context.Context, string, string) (int, error)
	CountTasks(context.Context, store.TaskCountFilter) (int, error)
	Ping(ctx context.Context) error
}

// sessionStore is the refresh-token backend: Redis when configured, the
// Postgres tables otherwise.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type pgSessions struct {
	store dataStore
}

func (p pgSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p pgSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return p.store.LookupRefreshSession(ctx, tokenHash)
}

func (p pgSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	search   *search.Service
	images   *imagestore.Store
}

// New wires the service. sessions may be nil (falls back to Postgres);
// searchSvc and images may be nil when those backends are not configured.
func New(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searchSvc *search.Service, images *imagestore.Store) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   searchSvc,
		images:   images,
	}
	if s.sessions == nil {
		s.sessions = pgSessions{store: s.store}
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SignUp(ctx context.Context, name, email, password string) (Session, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return Session{}, errValidation("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, errValidation("a valid email is required")
	}

	hash, err := authpw.Hash(password)
	if err != nil {
		return Session{}, errValidation(err.Error())
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if store.IsUniqueViolation(err) {
			return Session{}, errValidation("email already registered")
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
		}
		return Session{}, err
	}
	if err := authpw.Verify(user.PasswordHash, password); err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.Name,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		UserEmail:    user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		UserEmail: user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// requireMember resolves the caller's membership in a workspace. Any failure
// (including the workspace not existing) reads as Unauthorized.
func (s *Service) requireMember(ctx context.Context, workspaceID, userID string) (store.Member, error) {
	if workspaceID == "" {
		return store.Member{}, errValidation("workspaceId is required")
	}
	member, err := s.store.GetMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Member{}, errUnauthorized()
		}
		return store.Member{}, err
	}
	return member, nil
}

func (s *Service) requireAdmin(ctx context.Context, workspaceID, userID string) (store.Member, error) {
	member, err := s.requireMember(ctx, workspaceID, userID)
	if err != nil {
		return store.Member{}, err
	}
	if !rbac.Can(rbac.Normalize(member.Role), rbac.ActionManage) {
		return store.Member{}, errUnauthorized()
	}
	return member, nil
}
