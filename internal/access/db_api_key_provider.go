package access

import (
	"context"
	"errors"

	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/quota"
	"github.com/apigate-dev/restgateway/internal/store"
)

// authenticateAPIKey resolves token to a key, consumes one unit of quota and
// loads the owner. Key checks run before the ledger so that rejected keys
// never consume quota.
func (g *Gate) authenticateAPIKey(ctx context.Context, token string) (*Principal, error) {
	key, errKey := g.lookupAPIKey(ctx, token)
	if errKey != nil {
		return nil, errKey
	}
	decision, errConsume := g.consume(ctx, key)
	if errConsume != nil {
		return nil, errConsume
	}
	user, errUser := g.activeOwner(ctx, key)
	if errUser != nil {
		return nil, errUser
	}
	return &Principal{Kind: KindAPIKey, User: user, APIKey: key, Quota: &decision}, nil
}

// authenticateOptionalAPIKey is authenticateAPIKey for routes that also serve
// anonymous callers. The owner is checked before the ledger, so a key whose
// owner is inactive falls through without consuming quota.
func (g *Gate) authenticateOptionalAPIKey(ctx context.Context, token string) (*Principal, error) {
	key, errKey := g.lookupAPIKey(ctx, token)
	if errKey != nil {
		return nil, errKey
	}
	user, errUser := g.activeOwner(ctx, key)
	if errUser != nil {
		return nil, errUser
	}
	decision, errConsume := g.consume(ctx, key)
	if errConsume != nil {
		return nil, errConsume
	}
	return &Principal{Kind: KindAPIKey, User: user, APIKey: key, Quota: &decision}, nil
}

func (g *Gate) lookupAPIKey(ctx context.Context, token string) (*models.APIKey, error) {
	key, errFind := g.store.FindAPIKeyByKey(ctx, token)
	switch {
	case errFind == nil:
	case errors.Is(errFind, store.ErrNotFound):
		return nil, newError(InvalidCredential, errFind)
	default:
		return nil, newError(StoreUnavailable, errFind)
	}

	if !key.Active || key.RevokedAt != nil {
		return nil, newError(InactiveKey, nil)
	}
	if key.IsExpired(g.now()) {
		return nil, newError(ExpiredKey, nil)
	}
	return key, nil
}

func (g *Gate) consume(ctx context.Context, key *models.APIKey) (quota.Decision, error) {
	decision, errCheck := g.ledger.CheckAndConsume(ctx, key.ID)
	switch {
	case errCheck == nil:
	case errors.Is(errCheck, quota.ErrKeyNotFound):
		return quota.Decision{}, newError(InvalidCredential, errCheck)
	default:
		return quota.Decision{}, newError(StoreUnavailable, errCheck)
	}
	if !decision.Allowed {
		return quota.Decision{}, &Error{Kind: QuotaExceeded, Decision: &decision}
	}
	return decision, nil
}

func (g *Gate) activeOwner(ctx context.Context, key *models.APIKey) (*models.User, error) {
	user, errUser := g.store.FindUserByID(ctx, key.UserID)
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
	return user, nil
}
