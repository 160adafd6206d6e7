package authz

import "errors"

var (
	ErrValidation          = errors.New("authz: invalid input")
	ErrUnknownPermission   = errors.New("authz: unknown permission code")
	ErrUnknownRole         = errors.New("authz: unknown role name")
	ErrDuplicatePermission = errors.New("authz: permission already registered")
	ErrUnknownUser         = errors.New("authz: unknown user")
	ErrNotFound            = errors.New("authz: not found")
	ErrConflict            = errors.New("authz: resource conflict")
)
