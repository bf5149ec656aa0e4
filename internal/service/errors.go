package service

import "errors"

// Errors shared across services. Handlers map them to response codes.
var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("not allowed to access this resource")
)
