package service

import "errors"

// Errors returned by services. Handlers map them to HTTP statuses.
var (
	ErrAccessDenied          = errors.New("access denied to this project")
	ErrAdminRequired         = errors.New("admin access required")
	ErrOwnerRequired         = errors.New("owner access required")
	ErrNotFound              = errors.New("not found")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidRefreshToken   = errors.New("invalid refresh token")
	ErrCannotRemoveOwner     = errors.New("cannot remove project owner")
	ErrMilestoneNotInProject = errors.New("milestone does not belong to this project")
)
