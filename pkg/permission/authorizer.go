package permission

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

const maxInheritanceDepth = 10

// Role grants permissions directly and through the roles it inherits.
type Role struct {
	Permissions []string `json:"permissions" yaml:"permissions"`
	Inherits    []string `json:"inherits,omitempty" yaml:"inherits"`
}

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// DefaultRoles are the built-in tenant roles.
func DefaultRoles() map[string]Role {
	return map[string]Role{
		RoleViewer: {Permissions: []string{VideosRead}},
		RoleEditor: {Permissions: []string{"videos.*", UploadsWrite}, Inherits: []string{RoleViewer}},
		RoleOwner:  {Permissions: []string{"*"}},
	}
}

// Authorizer answers whether a role holds a permission. Grants are resolved
// once at construction; the authorizer is read-only afterwards.
type Authorizer struct {
	grants map[string][]string
}

// NewAuthorizer flattens roles and checks every concrete grant against the
// catalog. Wildcard grants are not checked.
func NewAuthorizer(ctx context.Context, roles map[string]Role, catalog *Catalog) (*Authorizer, error) {
	if err := checkInheritance(roles); err != nil {
		return nil, err
	}

	var known []string
	if catalog != nil {
		perms, err := catalog.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("load permission catalog: %w", err)
		}
		for _, p := range perms {
			known = append(known, p.Key)
		}
	}

	a := &Authorizer{grants: make(map[string][]string, len(roles))}
	for name := range roles {
		all := collect(name, roles, make(map[string]bool), 0)
		slices.Sort(all)
		all = slices.Compact(all)
		if known != nil {
			for _, g := range all {
				if !strings.HasSuffix(g, "*") && !slices.Contains(known, g) {
					return nil, fmt.Errorf("%w: role %q grants %q", ErrUnknownPermission, name, g)
				}
			}
		}
		a.grants[name] = all
	}
	return a, nil
}

// Can returns nil when role holds permission.
func (a *Authorizer) Can(role, permission string) error {
	grants, ok := a.grants[role]
	if !ok {
		return ErrInvalidRole
	}
	for _, g := range grants {
		if matches(g, permission) {
			return nil
		}
	}
	return ErrInsufficientPermissions
}

// Roles returns the known role names in lexical order.
func (a *Authorizer) Roles() []string {
	out := make([]string, 0, len(a.grants))
	for name := range a.grants {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// matches reports whether grant covers permission. "*" covers everything and
// "videos.*" covers every key under "videos.".
func matches(grant, permission string) bool {
	if grant == "*" || grant == permission {
		return true
	}
	prefix, ok := strings.CutSuffix(grant, "*")
	return ok && strings.HasSuffix(prefix, ".") && strings.HasPrefix(permission, prefix)
}

func collect(name string, roles map[string]Role, visited map[string]bool, depth int) []string {
	if depth > maxInheritanceDepth || visited[name] {
		return nil
	}
	visited[name] = true
	role, ok := roles[name]
	if !ok {
		return nil
	}
	out := slices.Clone(role.Permissions)
	for _, parent := range role.Inherits {
		out = append(out, collect(parent, roles, visited, depth+1)...)
	}
	return out
}

func checkInheritance(roles map[string]Role) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(roles))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrCircularInheritance, name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, parent := range roles[name].Inherits {
			if _, ok := roles[parent]; !ok {
				return fmt.Errorf("%w: %s inherits %s", ErrInvalidRole, name, parent)
			}
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for name := range roles {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
