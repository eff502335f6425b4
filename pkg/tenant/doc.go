// Package tenant resolves inbound work to a tenant and carries that tenant
// through the unit of work as an explicit Scope.
//
// Resolution never uses errors for expected outcomes. Resolver.Resolve returns
// a Resolution whose Kind is one of Resolved, Exempt, NotFound, Suspended or
// Ambiguous; the error return is reserved for directory outages.
//
// A Scope is single-assignment: Begin refuses a context that already carries
// an active scope, and End invalidates the scope for anyone still holding it.
// Background jobs use Run so that the scope ends even if the work panics.
//
//	err := tenant.Run(ctx, t, func(ctx context.Context, s *tenant.Scope) error {
//	    return videos.Expire(ctx, s)
//	})
//
// Middleware wires the resolver into an http.Handler chain.
package tenant
