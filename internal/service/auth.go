package service

// AuthService sits between the auth handlers and the user repository:
//
//	AuthHandler (HTTP) → AuthService (rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// Two identity providers feed it. GitHub OAuth ("github:<id>") and local
// email/password accounts ("local:<email>"). Both end the same way: a user
// row keyed by open id and a session JWT for it.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/auth"
	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/repository"
)

type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	ownerOpenID string
	logger      *slog.Logger
}

// NewAuthService wires the auth dependencies. ownerOpenID, when non-empty,
// is the identity that is promoted to admin on sign-in.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	ownerOpenID string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		passwords:   passwords,
		ownerOpenID: strings.TrimSpace(ownerOpenID),
		logger:      logger,
	}
}

// AuthResult bundles the user and the issued session token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

var errInvalidCredentials = apperror.Unauthorized("invalid email or password")

// LoginGitHub upserts the account behind a GitHub profile and issues a
// session. Name and email are refreshed on every sign-in.
func (s *AuthService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, fmt.Errorf("service/auth: GitHub user must not be empty")
	}

	user := &model.User{
		OpenID:      gh.OpenID(),
		Name:        gh.DisplayName(),
		Email:       strings.ToLower(gh.Email),
		LoginMethod: model.LoginGitHub,
		Role:        s.roleFor(gh.OpenID()),
	}
	if err := s.users.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user %s: %w", user.OpenID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

// Register creates a local email/password account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}
	if err := maxLength("name", name, MaxNameLength); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	openID := "local:" + email
	user := &model.User{
		OpenID:       openID,
		Name:         name,
		Email:        email,
		LoginMethod:  model.LoginLocal,
		Role:         s.roleFor(openID),
		PasswordHash: hash,
	}
	if err := s.users.CreateLocalUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: registering %s: %w", email, err)
	}

	s.logger.Info("local account registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks a local account's password. Unknown email and wrong password
// produce the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, errInvalidCredentials
	}

	user, err := s.users.GetUserByOpenID(ctx, "local:"+email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("password verification failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, errInvalidCredentials
	}

	if err := s.users.TouchSignIn(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("service/auth: recording sign-in: %w", err)
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID))
	return s.issue(user)
}

// Me returns the account behind a session's user id.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("Please login (10001)")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// SessionTTL is how long issued session tokens (and their cookies) live.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) roleFor(openID string) model.Role {
	if s.ownerOpenID != "" && openID == s.ownerOpenID {
		return model.RoleAdmin
	}
	return model.RoleUser
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	if err := maxLength("email", email, MaxNameLength); err != nil {
		return "", err
	}
	return email, nil
}
