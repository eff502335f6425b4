// Package auth verifies bearer tokens on tenant routes.
//
// Tokens are HS256 JWTs carrying the user, the tenant the user acts in and the
// user's role there. Identity is established elsewhere; this package only
// issues tokens for tests and tooling and verifies them on requests. A token
// is accepted only for the tenant its claims name: the middleware runs after
// tenant resolution and rejects tokens whose tenant differs from the scope of
// the request.
package auth
