package permission

import "errors"

var (
	ErrInvalidRole             = errors.New("permission: unknown role")
	ErrInsufficientPermissions = errors.New("permission: insufficient permissions")
	ErrCircularInheritance     = errors.New("permission: circular role inheritance")
	ErrUnknownPermission       = errors.New("permission: role grants a key missing from the catalog")
)
