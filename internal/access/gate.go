// Package access classifies the credential on each inbound request and
// resolves it to a principal.
package access

import (
	"context"
	"net/http"
	"time"

	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/quota"
	"github.com/apigate-dev/restgateway/internal/security"
)

// Policy selects which credentials an endpoint accepts and how failures
// are treated.
type Policy int

const (
	// PolicyAPIKey requires an API key. Bearer tokens are not accepted.
	PolicyAPIKey Policy = iota
	// PolicyOptionalAPIKey accepts an API key but falls through to anonymous
	// access on any failure other than an exhausted quota.
	PolicyOptionalAPIKey
	// PolicyUser requires a bearer session token.
	PolicyUser
	// PolicyAny accepts either scheme, picked by precedence.
	PolicyAny
)

// PrincipalKind is the resolved identity type.
type PrincipalKind int

const (
	KindAnonymous PrincipalKind = iota
	KindUserSession
	KindAPIKey
)

func (k PrincipalKind) String() string {
	switch k {
	case KindUserSession:
		return "user_session"
	case KindAPIKey:
		return "api_key"
	default:
		return "anonymous"
	}
}

// Principal is the identity attached to a request. Quota is set only for
// API key principals and Claims only for session principals.
type Principal struct {
	Kind   PrincipalKind
	User   *models.User
	APIKey *models.APIKey
	Claims *security.UserClaims
	Quota  *quota.Decision
}

// Anonymous is the principal of unauthenticated requests.
var Anonymous = &Principal{Kind: KindAnonymous}

// Store is the part of the credential store the gate reads.
type Store interface {
	FindAPIKeyByKey(ctx context.Context, apiKey string) (*models.APIKey, error)
	FindUserByID(ctx context.Context, id uint64) (*models.User, error)
	FindSession(ctx context.Context, id string) (*models.Session, error)
}

// QuotaChecker consumes quota for an API key.
type QuotaChecker interface {
	CheckAndConsume(ctx context.Context, apiKeyID uint64) (quota.Decision, error)
}

// Options configures token verification.
type Options struct {
	JWTSecret        string
	EnforceSessions  bool
	SessionRetention time.Duration
	Now              func() time.Time
}

// Gate authenticates requests.
type Gate struct {
	store  Store
	ledger QuotaChecker
	opts   Options
	now    func() time.Time
}

// NewGate builds a gate over s and ledger.
func NewGate(s Store, ledger QuotaChecker, opts Options) *Gate {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{store: s, ledger: ledger, opts: opts, now: now}
}

// Authenticate resolves the request's principal under policy. Errors are
// always *Error.
func (g *Gate) Authenticate(ctx context.Context, r *http.Request, policy Policy) (*Principal, error) {
	switch policy {
	case PolicyAPIKey:
		cred, ok := apiKeyCredential(r)
		if !ok {
			return nil, newError(MissingCredential, nil)
		}
		return g.authenticateAPIKey(ctx, cred.value)

	case PolicyOptionalAPIKey:
		cred, ok := apiKeyCredential(r)
		if !ok {
			return Anonymous, nil
		}
		principal, errAuth := g.authenticateOptionalAPIKey(ctx, cred.value)
		if errAuth != nil {
			// Only an exhausted quota is surfaced; every other key failure,
			// store errors included, serves the caller anonymously.
			if KindOf(errAuth) == QuotaExceeded {
				return nil, errAuth
			}
			return Anonymous, nil
		}
		return principal, nil

	case PolicyUser:
		cred, ok := bearerCredential(r)
		if !ok {
			return nil, newError(MissingCredential, nil)
		}
		return g.authenticateBearer(ctx, cred.value)

	default:
		cred := firstCredential(r)
		switch cred.scheme {
		case schemeAPIKey:
			return g.authenticateAPIKey(ctx, cred.value)
		case schemeBearer:
			return g.authenticateBearer(ctx, cred.value)
		default:
			return nil, newError(MissingCredential, nil)
		}
	}
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, or Anonymous.
func PrincipalFrom(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey{}).(*Principal); ok && p != nil {
		return p
	}
	return Anonymous
}
