package provider

import (
	"context"
	"errors"
	"net/http"
)

// AuthVerb is an auth-provider operation.
type AuthVerb string

const (
	AuthLogin          AuthVerb = "AUTH_LOGIN"
	AuthLogout         AuthVerb = "AUTH_LOGOUT"
	AuthError          AuthVerb = "AUTH_ERROR"
	AuthCheck          AuthVerb = "AUTH_CHECK"
	AuthGetPermissions AuthVerb = "AUTH_GET_PERMISSIONS"
)

// AuthParams are the arguments of an auth call. Err is set for AUTH_ERROR.
type AuthParams struct {
	Err      error
	Resource string
	Route    string
}

// AuthProvider answers auth questions. A non-nil error from AUTH_ERROR or
// AUTH_CHECK means the session is no longer valid.
type AuthProvider interface {
	Auth(ctx context.Context, verb AuthVerb, params AuthParams) error
}

// AuthFunc adapts a function to AuthProvider.
type AuthFunc func(ctx context.Context, verb AuthVerb, params AuthParams) error

// Auth calls f.
func (f AuthFunc) Auth(ctx context.Context, verb AuthVerb, params AuthParams) error {
	return f(ctx, verb, params)
}

// AllowAll accepts every auth call.
var AllowAll = AuthFunc(func(context.Context, AuthVerb, AuthParams) error { return nil })

// ErrUnauthenticated is returned by StatusAuth when a fetch failed with 401
// or 403.
var ErrUnauthenticated = errors.New("unauthenticated")

// StatusAuth rejects AUTH_ERROR for failures carrying status 401 or 403 and
// accepts everything else.
var StatusAuth = AuthFunc(func(_ context.Context, verb AuthVerb, params AuthParams) error {
	if verb != AuthError {
		return nil
	}
	switch StatusOf(params.Err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthenticated
	}
	return nil
})
