package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Checkout metadata keys.
const (
	metadataUserID = "user_id"
	metadataPlan   = "plan"
)

const eventCheckoutCompleted = "checkout.session.completed"

// Payment errors.
var (
	ErrPaymentsDisabled = errors.New("integrations: payments are not configured")
	ErrInvalidSignature = errors.New("integrations: invalid webhook signature")
	ErrMalformedEvent   = errors.New("integrations: malformed webhook event")
)

// Checkout is a hosted checkout page for a plan upgrade.
type Checkout struct {
	ID   string `json:"id"`
	Plan string `json:"plan"`
	URL  string `json:"url"`
}

// PlanChange is a paid plan upgrade reported by the payment provider.
type PlanChange struct {
	UserID    uint64
	Plan      string
	SessionID string
}

// Payments starts plan checkouts and verifies provider webhooks.
type Payments interface {
	PlanPriced(plan string) bool
	CreateCheckout(ctx context.Context, user *models.User, plan string) Outcome[Checkout]
	ParseWebhook(payload []byte, signature string) (*PlanChange, error)
}

// CheckoutCreator creates a provider checkout session.
type CheckoutCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripePayments implements Payments on Stripe Checkout.
type StripePayments struct {
	cfg           config.StripeConfig
	createSession CheckoutCreator
}

// NewStripePayments builds the Stripe client from cfg.
func NewStripePayments(cfg config.StripeConfig) *StripePayments {
	client := session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	return &StripePayments{cfg: cfg, createSession: client.New}
}

// WithCheckoutCreator replaces the session creator.
func (p *StripePayments) WithCheckoutCreator(fn CheckoutCreator) *StripePayments {
	p.createSession = fn
	return p
}

// PlanPriced reports whether plan has a configured price.
func (p *StripePayments) PlanPriced(plan string) bool {
	return strings.TrimSpace(p.cfg.PlanPrices[plan]) != ""
}

// CreateCheckout opens a subscription checkout for user on plan.
func (p *StripePayments) CreateCheckout(ctx context.Context, user *models.User, plan string) Outcome[Checkout] {
	return observe("payments", p.createCheckout(ctx, user, plan))
}

func (p *StripePayments) createCheckout(ctx context.Context, user *models.User, plan string) Outcome[Checkout] {
	fallback := Checkout{Plan: plan}
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return Degrade(fallback, ErrPaymentsDisabled.Error())
	}
	price := strings.TrimSpace(p.cfg.PlanPrices[plan])
	if price == "" {
		return Degrade(fallback, "no price configured for plan "+plan)
	}

	userID := strconv.FormatUint(user.ID, 10)
	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(p.cfg.SuccessURL),
		CancelURL:         stripe.String(p.cfg.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		CustomerEmail:     stripe.String(user.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, userID)
	params.AddMetadata(metadataPlan, plan)

	sess, errCreate := p.createSession(params)
	if errCreate != nil {
		return Degrade(fallback, fmt.Sprintf("create checkout session: %v", errCreate))
	}
	return Ok(Checkout{ID: sess.ID, Plan: plan, URL: sess.URL})
}

// ParseWebhook verifies the signature and extracts a plan change. Events
// other than a paid checkout completion return a nil change.
func (p *StripePayments) ParseWebhook(payload []byte, signature string) (*PlanChange, error) {
	if strings.TrimSpace(p.cfg.WebhookSecret) == "" {
		return nil, ErrPaymentsDisabled
	}
	event, errConstruct := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if errConstruct != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, errConstruct)
	}
	if string(event.Type) != eventCheckoutCompleted {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if errUnmarshal := json.Unmarshal(event.Data.Raw, &sess); errUnmarshal != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, errUnmarshal)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		return nil, nil
	}

	rawUserID := sess.Metadata[metadataUserID]
	if rawUserID == "" {
		rawUserID = sess.ClientReferenceID
	}
	userID, errParse := strconv.ParseUint(rawUserID, 10, 64)
	if errParse != nil || userID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrMalformedEvent)
	}
	plan, known := models.NormalizePlan(sess.Metadata[metadataPlan])
	if !known || plan == models.PlanAdmin {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrMalformedEvent, sess.Metadata[metadataPlan])
	}
	return &PlanChange{UserID: userID, Plan: plan, SessionID: sess.ID}, nil
}
