package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/auth"
	"parkadmin/app/internal/users"
)

type loginInput struct {
	Authorization string `header:"Authorization"`
}

type loginOutput struct {
	Body struct {
		Message string     `json:"message"`
		User    users.User `json:"user"`
	}
}

type userOutput struct {
	Body users.User
}

type userListOutput struct {
	TotalCount int `header:"X-Total-Count"`
	Body       []users.User
}

type userAccessInput struct {
	ID   string `path:"id"`
	Body struct {
		_         struct{} `json:"-" additionalProperties:"true"`
		IsAllowed *bool    `json:"isAllowed,omitempty"`
		IsAdmin   *bool    `json:"isAdmin,omitempty"`
	}
}

type messageOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

func (s *Server) registerUserRoutes() {
	huma.Post(s.api, apiPrefix+"/users/login", s.loginHandler, operation("login", "Sign in with a Google ID token", auth.AccessPublic, "users"))
	huma.Get(s.api, apiPrefix+"/users/me", s.currentUserHandler, operation("current-user", "Fetch the signed-in account", auth.AccessSignedIn, "users"))

	base := apiPrefix + "/user-management"
	huma.Get(s.api, base, s.listUsersHandler, operation("list-users", "List accounts", auth.AccessAdmin, "user-management"))
	huma.Patch(s.api, base+"/{id}", s.updateUserAccessHandler, operation("update-user-access", "Approve or promote an account", auth.AccessAdmin, "user-management"))
	huma.Delete(s.api, base+"/{id}", s.deleteUserHandler, operation("delete-user", "Delete an account", auth.AccessAdmin, "user-management"))
}

func (s *Server) loginHandler(ctx context.Context, input *loginInput) (*loginOutput, error) {
	identity, err := s.verifyBearer(ctx, input.Authorization)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "verifying login token")
	}

	user, err := s.users.Login(ctx, identity)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "signing in")
	}

	out := &loginOutput{}
	out.Body.Message = "Login successful"
	if !user.IsAllowed {
		out.Body.Message = "Your account is waiting for approval"
	}
	out.Body.User = *user
	return out, nil
}

func (s *Server) currentUserHandler(ctx context.Context, _ *struct{}) (*userOutput, error) {
	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		return nil, s.toHTTPError(ctx, apperr.Unauthorized("Please sign in first"), "reading session")
	}

	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "fetching current user")
	}
	return &userOutput{Body: *user}, nil
}

func (s *Server) listUsersHandler(ctx context.Context, _ *struct{}) (*userListOutput, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing users")
	}
	return &userListOutput{TotalCount: len(list), Body: list}, nil
}

func (s *Server) updateUserAccessHandler(ctx context.Context, input *userAccessInput) (*userOutput, error) {
	session, _ := auth.SessionFromContext(ctx)

	user, err := s.users.UpdateAccess(ctx, session, input.ID, users.AccessChange{
		IsAllowed: input.Body.IsAllowed,
		IsAdmin:   input.Body.IsAdmin,
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating user access")
	}
	return &userOutput{Body: *user}, nil
}

func (s *Server) deleteUserHandler(ctx context.Context, input *idInput) (*messageOutput, error) {
	session, _ := auth.SessionFromContext(ctx)

	if err := s.users.Delete(ctx, session, input.ID); err != nil {
		return nil, s.toHTTPError(ctx, err, "deleting user")
	}

	out := &messageOutput{}
	out.Body.Message = "User deleted successfully"
	return out, nil
}
