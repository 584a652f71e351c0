package access

import (
	"context"
	"errors"

	"github.com/apigate-dev/restgateway/internal/security"
	"github.com/apigate-dev/restgateway/internal/store"
)

// authenticateBearer verifies a session token and re-reads the user so that
// deactivation takes effect before the token expires. With session
// enforcement on, the token's session row must also still exist.
func (g *Gate) authenticateBearer(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, newError(InvalidCredential, security.ErrInvalidToken)
	}
	claims, errParse := security.ParseToken(g.opts.JWTSecret, token, g.now())
	if errParse != nil {
		return nil, newError(InvalidCredential, errParse)
	}

	if g.opts.EnforceSessions {
		session, errSession := g.store.FindSession(ctx, claims.SessionID())
		switch {
		case errSession == nil:
		case errors.Is(errSession, store.ErrNotFound):
			return nil, newError(InvalidCredential, errSession)
		default:
			return nil, newError(StoreUnavailable, errSession)
		}
		if session.UserID != claims.UserID {
			return nil, newError(InvalidCredential, nil)
		}
		if g.opts.SessionRetention > 0 && session.CreatedAt.Add(g.opts.SessionRetention).Before(g.now()) {
			return nil, newError(InvalidCredential, nil)
		}
	}

	user, errUser := g.store.FindUserByID(ctx, claims.UserID)
	switch {
	case errUser == nil:
	case errors.Is(errUser, store.ErrNotFound):
		return nil, newError(InvalidCredential, errUser)
	default:
		return nil, newError(StoreUnavailable, errUser)
	}
	if !user.Active {
		return nil, newError(InactiveAccount, nil)
	}
	return &Principal{Kind: KindUserSession, User: user, Claims: claims}, nil
}
