package tenant

import "errors"

var (
	ErrTenantNotFound   = errors.New("tenant: not found")
	ErrInvalidTenant    = errors.New("tenant: invalid tenant record")
	ErrInvalidSlug      = errors.New("tenant: invalid slug")
	ErrInvalidDomain    = errors.New("tenant: invalid domain")
	ErrDuplicateSlug    = errors.New("tenant: slug already taken")
	ErrNilTenant        = errors.New("tenant: nil tenant")
	ErrScopeAlreadySet  = errors.New("tenant: scope already set for this unit of work")
	ErrNoScope          = errors.New("tenant: no active scope in context")
	ErrDirectoryFailure = errors.New("tenant: directory lookup failed")
)
