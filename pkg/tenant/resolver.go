package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/logger"
)

// Kind enumerates resolution outcomes.
type Kind int

const (
	NotFound Kind = iota
	Resolved
	Exempt
	Suspended
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Exempt:
		return "exempt"
	case Suspended:
		return "suspended"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Resolution is the outcome of resolving one unit of work.
// Tenant is set for Resolved and Suspended, Reason for Suspended,
// Candidates for Ambiguous.
type Resolution struct {
	Kind       Kind
	Tenant     *Tenant
	Reason     string
	Candidates []uuid.UUID
}

// Request carries the inputs the resolver looks at.
type Request struct {
	Host         string
	OverrideSlug string
	Path         string
}

// RequestFromHTTP builds a Request from r, reading the override slug from header.
func RequestFromHTTP(r *http.Request, header string) Request {
	req := Request{Host: r.Host, Path: r.URL.Path}
	if header != "" {
		req.OverrideSlug = strings.TrimSpace(r.Header.Get(header))
	}
	return req
}

// Resolver maps inbound requests to tenants using a Directory.
type Resolver struct {
	dir        Directory
	baseDomain string
	exempt     []string
	log        *slog.Logger
}

type ResolverOption func(*Resolver)

// WithBaseDomain enables "<slug>.<domain>" resolution.
func WithBaseDomain(domain string) ResolverOption {
	return func(r *Resolver) { r.baseDomain = NormalizeHost(domain) }
}

// WithExemptPrefixes sets path prefixes that bypass tenant resolution.
func WithExemptPrefixes(prefixes ...string) ResolverOption {
	return func(r *Resolver) {
		for _, p := range prefixes {
			if p = strings.TrimSpace(p); p != "" {
				r.exempt = append(r.exempt, p)
			}
		}
	}
}

func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

func NewResolver(dir Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{dir: dir, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines which tenant, if any, owns req.
//
// Exempt prefixes are checked first and never touch the directory. Then the
// override slug, then an exact custom-domain binding, then a subdomain of the
// base domain. The returned error is reserved for directory failures; every
// expected outcome is a Resolution.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	if r.isExempt(req.Path) {
		return Resolution{Kind: Exempt}, nil
	}

	if req.OverrideSlug != "" {
		slug := strings.ToLower(req.OverrideSlug)
		if !IsValidSlug(slug) {
			return Resolution{Kind: NotFound}, nil
		}
		t, err := r.lookupSlug(ctx, slug)
		if err != nil || t == nil {
			return Resolution{Kind: NotFound}, err
		}
		return classify(t), nil
	}

	host := NormalizeHost(req.Host)
	if host == "" {
		return Resolution{Kind: NotFound}, nil
	}

	bound, err := r.dir.ByDomain(ctx, host)
	if err != nil {
		return Resolution{Kind: NotFound}, errors.Join(ErrDirectoryFailure, err)
	}
	if len(bound) > 1 {
		return r.ambiguous(ctx, host, bound...), nil
	}

	var sub *Tenant
	if slug, ok := r.subdomainSlug(host); ok {
		if sub, err = r.lookupSlug(ctx, slug); err != nil {
			return Resolution{Kind: NotFound}, err
		}
	}

	switch {
	case len(bound) == 1 && sub != nil && sub.ID != bound[0].ID:
		return r.ambiguous(ctx, host, bound[0], sub), nil
	case len(bound) == 1:
		return classify(bound[0]), nil
	case sub != nil:
		return classify(sub), nil
	}
	return Resolution{Kind: NotFound}, nil
}

func (r *Resolver) isExempt(path string) bool {
	for _, p := range r.exempt {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (r *Resolver) subdomainSlug(host string) (string, bool) {
	if r.baseDomain == "" {
		return "", false
	}
	label, ok := strings.CutSuffix(host, "."+r.baseDomain)
	if !ok || label == "" || label == "www" || strings.Contains(label, ".") {
		return "", false
	}
	return label, IsValidSlug(label)
}

// lookupSlug returns nil, nil when no tenant has slug.
func (r *Resolver) lookupSlug(ctx context.Context, slug string) (*Tenant, error) {
	t, err := r.dir.BySlug(ctx, slug)
	switch {
	case errors.Is(err, ErrTenantNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Join(ErrDirectoryFailure, err)
	}
	return t, nil
}

func (r *Resolver) ambiguous(ctx context.Context, host string, matches ...*Tenant) Resolution {
	ids := make([]uuid.UUID, 0, len(matches))
	for _, t := range matches {
		ids = append(ids, t.ID)
	}
	logger.Critical(ctx, r.log, "ambiguous tenant binding",
		logger.Host(host),
		slog.Any("tenant_ids", ids),
	)
	return Resolution{Kind: Ambiguous, Candidates: ids}
}

func classify(t *Tenant) Resolution {
	if t.Suspended() {
		reason := t.SuspensionReason
		if reason == "" {
			reason = "tenant suspended"
		}
		return Resolution{Kind: Suspended, Tenant: t, Reason: reason}
	}
	return Resolution{Kind: Resolved, Tenant: t}
}
