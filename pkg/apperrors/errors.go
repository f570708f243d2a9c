package apperrors

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrTenantNotFound        = errors.New("tenant not found")
	ErrTenantDisabled        = errors.New("tenant disabled")
	ErrNoDatabaseIntegration = errors.New("tenant has no database integration")
	ErrIncompleteCredentials = errors.New("backend credentials incomplete")
	ErrUnknownBackendRole    = errors.New("backend role not configured for tenant")
	ErrTemplateNotFound      = errors.New("query template not found")
	ErrQueryRejected         = errors.New("query rejected by security gate")
	ErrUnsupportedDriver     = errors.New("unsupported source database driver")
	ErrInvalidTenantVisitID  = errors.New("invalid tenant visit id")
)
