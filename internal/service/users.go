package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/validator"
)

// Session is a signed-in user together with their session token.
type Session struct {
	User  *model.User
	Token string
}

// Caller returns the identity used for authorization decisions.
func (s Session) Caller() model.Caller {
	return model.Caller{UserID: s.User.ID, Email: s.User.Email, Role: s.User.Role}
}

// AuthService turns bearer credentials into sessions. It accepts the
// service's own session tokens and, failing that, identity provider tokens,
// creating the local account on first sight.
type AuthService struct {
	users    UserStore
	verifier auth.IdentityVerifier
	tokens   *auth.TokenIssuer
	admins   map[string]struct{}
	log      *zerolog.Logger
}

// NewAuthService constructs an AuthService. Accounts created for an email in
// adminEmails start with the admin role.
func NewAuthService(users UserStore, verifier auth.IdentityVerifier, tokens *auth.TokenIssuer, adminEmails []string, log *zerolog.Logger) *AuthService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(e)] = struct{}{}
	}
	return &AuthService{users: users, verifier: verifier, tokens: tokens, admins: admins, log: log}
}

// Register exchanges an identity provider token for a local account and a
// session token. created is false when the account already existed.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (Session, bool, error) {
	if err := validator.Validate(ctx, req); err != nil {
		return Session{}, false, invalid("%s", err)
	}

	id, err := s.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		return Session{}, false, unauthenticated("Invalid or expired token", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = id.DisplayName()
	}
	avatar := req.Avatar
	if avatar == "" {
		avatar = id.AvatarURL
	}
	return s.signIn(ctx, id, name, avatar)
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (Session, error) {
	if bearer == "" {
		return Session{}, unauthenticated("Not authorized, no token", nil)
	}

	if claims, err := s.tokens.Parse(bearer); err == nil {
		user, err := s.users.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return Session{}, unauthenticated("User not found", nil)
			}
			return Session{}, fmt.Errorf("load session user: %w", err)
		}
		if !user.IsActive {
			return Session{}, unauthenticated("Account is deactivated", nil)
		}
		return Session{User: user, Token: bearer}, nil
	}

	id, err := s.verifier.Verify(ctx, bearer)
	if err != nil {
		return Session{}, unauthenticated("Not authorized, token failed", err)
	}
	session, _, err := s.signIn(ctx, id, id.DisplayName(), id.AvatarURL)
	return session, err
}

func (s *AuthService) signIn(ctx context.Context, id auth.Identity, name, avatar string) (Session, bool, error) {
	role := model.RoleUser
	if _, ok := s.admins[id.Email]; ok {
		role = model.RoleAdmin
	}

	user, created, err := s.users.UpsertFromIdentity(ctx, &model.User{
		SubjectID: id.SubjectID,
		Email:     id.Email,
		Name:      name,
		Avatar:    avatar,
		Role:      role,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Session{}, false, conflict("Email is already linked to another account", err)
		}
		return Session{}, false, fmt.Errorf("sign in: %w", err)
	}
	if !user.IsActive {
		return Session{}, false, unauthenticated("Account is deactivated", nil)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, false, err
	}
	if created {
		s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	}
	return Session{User: user, Token: token}, created, nil
}

// UserService covers self-service profile changes and admin user management.
type UserService struct {
	users UserStore
	stats AnalyticsStore
	log   *zerolog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users UserStore, stats AnalyticsStore, log *zerolog.Logger) *UserService {
	return &UserService{users: users, stats: stats, log: log}
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, caller model.Caller) (*model.User, error) {
	return s.get(ctx, caller.UserID)
}

// UpdateProfile changes the caller's name, phone or avatar.
func (s *UserService) UpdateProfile(ctx context.Context, caller model.Caller, req model.UpdateProfileRequest) (*model.User, error) {
	if err := validator.Validate(ctx, req); err != nil {
		return nil, invalid("%s", err)
	}
	u, err := s.users.UpdateProfile(ctx, caller.UserID, req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// ListUsers returns one page of users. Admin only.
func (s *UserService) ListUsers(ctx context.Context, caller model.Caller, f model.UserFilter, p model.PageRequest) (model.Page[model.User], error) {
	if err := requireAdmin(caller); err != nil {
		return model.Page[model.User]{}, err
	}
	if f.Role != "" && !f.Role.Valid() {
		return model.Page[model.User]{}, invalid("role has an invalid format")
	}
	f.Search = strings.TrimSpace(f.Search)

	users, total, err := s.users.List(ctx, f, p)
	if err != nil {
		return model.Page[model.User]{}, fmt.Errorf("list users: %w", err)
	}
	return model.Page[model.User]{Items: users, Total: total, PageRequest: p}, nil
}

// GetUser returns any user. Admin only.
func (s *UserService) GetUser(ctx context.Context, caller model.Caller, id string) (*model.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

// UpdateUser applies an admin patch to any user.
func (s *UserService) UpdateUser(ctx context.Context, caller model.Caller, id string, req model.UpdateUserRequest) (*model.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := parseID(id, "User"); err != nil {
		return nil, err
	}
	if err := validator.Validate(ctx, req); err != nil {
		return nil, invalid("%s", err)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}

	u, err := s.users.Update(ctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, notFound("User not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, translate(err)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.log.Info().Str("user_id", id).Str("by", caller.UserID).Msg("user updated")
	return u, nil
}

// DeleteUser deactivates a user. Admins cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, caller model.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if id == caller.UserID {
		return invalid("you cannot delete your own account")
	}
	if err := parseID(id, "User"); err != nil {
		return err
	}
	if err := s.users.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("User not found")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info().Str("user_id", id).Str("by", caller.UserID).Msg("user deactivated")
	return nil
}

// UserStats returns booking totals for one user. Admin only.
func (s *UserService) UserStats(ctx context.Context, caller model.Caller, id string) (model.UserStats, error) {
	if err := requireAdmin(caller); err != nil {
		return model.UserStats{}, err
	}
	if _, err := s.get(ctx, id); err != nil {
		return model.UserStats{}, err
	}
	stats, err := s.stats.UserStats(ctx, id)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}

func (s *UserService) get(ctx context.Context, id string) (*model.User, error) {
	if err := parseID(id, "User"); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
