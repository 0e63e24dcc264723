package lark

import (
	"errors"
	"fmt"

	"github.com/phrazzld/tasklink/internal/identity"
)

// Error definitions for the lark package.
var (
	// ErrUserNotFound is returned when the directory has no such user.
	ErrUserNotFound = identity.ErrUserNotFound

	// ErrTaskNotFound is returned when a task guid does not exist or is not
	// visible to the app.
	ErrTaskNotFound = errors.New("lark task not found")

	// ErrUnavailable marks failures worth retrying: throttling, 5xx,
	// transport errors and failed token fetches.
	ErrUnavailable = errors.New("lark api unavailable")

	// ErrAuth is returned when the API rejects the tenant access token.
	ErrAuth = errors.New("lark authentication failed")
)

// APIError is a non-zero business code returned by the open platform.
type APIError struct {
	HTTPStatus int
	Code       int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lark api error: http %d, code %d: %s", e.HTTPStatus, e.Code, e.Msg)
}

// Business codes with special handling.
const (
	codeRateLimited       = 99991400
	codeTokenInvalid      = 99991663
	codeTokenExpired      = 99991677
	codeAppTicketInvalid  = 99991661
	codeTenantTokenFailed = 99991668
)

func tokenRejected(code int) bool {
	switch code {
	case codeTokenInvalid, codeTokenExpired, codeAppTicketInvalid, codeTenantTokenFailed:
		return true
	}
	return false
}
