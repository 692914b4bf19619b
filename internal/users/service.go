// Package users manages admin console accounts and their roles.
package users

import (
	"context"
	"slices"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/auth"
)

// Service defines account operations used by the login and user management endpoints.
type Service interface {
	Login(ctx context.Context, identity auth.Identity) (*User, error)
	Authenticate(ctx context.Context, identity auth.Identity) (auth.Session, error)
	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateAccess(ctx context.Context, actor auth.Session, id string, change AccessChange) (*User, error)
	Delete(ctx context.Context, actor auth.Session, id string) error
}

// AccessChange holds the role flags to change. Nil fields are left alone.
type AccessChange struct {
	IsAllowed *bool
	IsAdmin   *bool
}

type service struct {
	repo        Repository
	adminEmails []string
	logger      *logrus.Logger
	sentryHub   *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the users service. Accounts whose email is in adminEmails become
// administrators on sign-in.
func NewService(repo Repository, adminEmails []string, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("users repository is required")
	}

	normalized := make([]string, 0, len(adminEmails))
	for _, email := range adminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			normalized = append(normalized, email)
		}
	}

	return &service{
		repo:        repo,
		adminEmails: normalized,
		logger:      logger,
		sentryHub:   hub,
	}, nil
}

// Login creates the account on first sign-in and refreshes the profile afterwards. New
// accounts wait for approval unless their email is configured as an administrator.
func (s *service) Login(ctx context.Context, identity auth.Identity) (*User, error) {
	email, err := verifiedEmail(identity)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.fail(logrus.Fields{"email": email}, err, "Failed to sign in, please try again later")
	}

	created := user == nil
	if created {
		user = &User{Email: email}
	}
	if name := strings.TrimSpace(identity.Name); name != "" {
		user.Name = name
	} else if user.Name == "" {
		user.Name = email
	}
	if identity.Picture != "" {
		user.Avatar = identity.Picture
	}
	if slices.Contains(s.adminEmails, email) {
		user.IsAdmin = true
		user.IsAllowed = true
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, s.fail(logrus.Fields{"email": email}, err, "Failed to sign in, please try again later")
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"created": created,
			"admin":   user.IsAdmin,
			"allowed": user.IsAllowed,
		}).Info("user signed in")
	}

	return user, nil
}

// Authenticate resolves a verified identity to the session of an existing account.
func (s *service) Authenticate(ctx context.Context, identity auth.Identity) (auth.Session, error) {
	email, err := verifiedEmail(identity)
	if err != nil {
		return auth.Session{}, err
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return auth.Session{}, s.fail(logrus.Fields{"email": email}, err, "Failed to verify your account")
	}
	if user == nil {
		return auth.Session{}, apperr.Unauthorized("Please sign in first")
	}

	return sessionOf(user), nil
}

func (s *service) Get(ctx context.Context, id string) (*User, error) {
	parsed, err := parseUserID(id)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, parsed)
	if err != nil {
		return nil, s.fail(logrus.Fields{"id": parsed}, err, "Failed to fetch user")
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}

	return user, nil
}

func (s *service) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.fail(nil, err, "Failed to fetch users")
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// UpdateAccess changes role flags. Administrators cannot revoke their own access, and
// granting admin also approves the account.
func (s *service) UpdateAccess(ctx context.Context, actor auth.Session, id string, change AccessChange) (*User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.ID == actor.UserID {
		if (change.IsAdmin != nil && !*change.IsAdmin) || (change.IsAllowed != nil && !*change.IsAllowed) {
			return nil, apperr.Forbidden("You cannot remove your own administrator access")
		}
	}

	if change.IsAllowed != nil {
		user.IsAllowed = *change.IsAllowed
	}
	if change.IsAdmin != nil {
		user.IsAdmin = *change.IsAdmin
		if user.IsAdmin {
			user.IsAllowed = true
		}
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, s.fail(logrus.Fields{"id": user.ID}, err, "Failed to update user")
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"actor_id": actor.UserID,
			"admin":    user.IsAdmin,
			"allowed":  user.IsAllowed,
		}).Info("user access updated")
	}

	return user, nil
}

func (s *service) Delete(ctx context.Context, actor auth.Session, id string) error {
	parsed, err := parseUserID(id)
	if err != nil {
		return err
	}
	if parsed == actor.UserID {
		return apperr.Forbidden("You cannot delete your own account")
	}

	deleted, err := s.repo.Delete(ctx, parsed)
	if err != nil {
		return s.fail(logrus.Fields{"id": parsed}, err, "Failed to delete user")
	}
	if !deleted {
		return apperr.NotFound("User not found")
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"user_id": parsed, "actor_id": actor.UserID}).Info("user deleted")
	}

	return nil
}

// verifiedEmail returns the normalised email of identity. Accounts and admin promotion are
// keyed by email, so an address the provider has not verified is refused.
func verifiedEmail(identity auth.Identity) (string, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return "", apperr.Unauthorized("Token carries no email address")
	}
	if !identity.EmailVerified {
		return "", apperr.Unauthorized("Your email address has not been verified")
	}
	return email, nil
}

func sessionOf(user *User) auth.Session {
	return auth.Session{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		IsAllowed: user.IsAllowed,
		IsAdmin:   user.IsAdmin,
	}
}

func parseUserID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.Validation("Invalid user ID format")
	}
	return id.String(), nil
}

func (s *service) fail(fields logrus.Fields, err error, message string) error {
	if eris.Is(err, ErrDuplicateEmail) {
		return apperr.Wrap(apperr.KindConflict, err, "A user with this email already exists")
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}
	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}

	return apperr.Upstream(err, message)
}
