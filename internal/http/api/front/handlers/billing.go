package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/apigate-dev/restgateway/internal/config"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/integrations"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 64 << 10

// stripeSignatureHeader carries the webhook signature.
const stripeSignatureHeader = "Stripe-Signature"

// BillingHandler handles plan checkout and the payment webhook.
type BillingHandler struct {
	store    *store.Store
	resp     *gatewayhttp.Responder
	payments integrations.Payments
	quotaCfg config.QuotaConfig
}

// NewBillingHandler constructs a BillingHandler.
func NewBillingHandler(s *store.Store, resp *gatewayhttp.Responder, payments integrations.Payments, quotaCfg config.QuotaConfig) *BillingHandler {
	return &BillingHandler{store: s, resp: resp, payments: payments, quotaCfg: quotaCfg}
}

// checkoutRequest defines the request body for plan checkouts.
type checkoutRequest struct {
	Plan string `json:"plan" binding:"required,oneof=basic pro enterprise"`
}

// Checkout opens a hosted checkout page for a paid plan.
func (h *BillingHandler) Checkout(c *gin.Context) {
	user := gatewayhttp.CurrentUser(c)
	if user == nil {
		h.resp.Error(c, http.StatusUnauthorized, string(access.MissingCredential), "authentication required")
		return
	}
	var body checkoutRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}
	if user.Plan == body.Plan {
		h.resp.Error(c, http.StatusConflict, "Conflict", "already on plan "+body.Plan)
		return
	}
	if !h.payments.PlanPriced(body.Plan) {
		gatewayhttp.ValidationFailed(c, h.resp, map[string]string{"plan": "is not available for purchase"})
		return
	}

	out := h.payments.CreateCheckout(c.Request.Context(), user, body.Plan)
	if out.Degraded {
		h.resp.Degraded(c, "checkout is temporarily unavailable", nil)
		return
	}
	h.resp.OK(c, http.StatusCreated, "checkout created", out.Value)
}

// Webhook applies paid plan upgrades reported by the payment provider.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if errRead != nil {
		h.resp.Error(c, http.StatusBadRequest, string(access.ValidationError), "unreadable webhook body")
		return
	}

	change, errParse := h.payments.ParseWebhook(payload, c.GetHeader(stripeSignatureHeader))
	switch {
	case errors.Is(errParse, integrations.ErrPaymentsDisabled):
		h.resp.Error(c, http.StatusServiceUnavailable, "PaymentsDisabled", "payments are not configured")
		return
	case errors.Is(errParse, integrations.ErrInvalidSignature):
		h.resp.Error(c, http.StatusBadRequest, string(access.InvalidCredential), "invalid webhook signature")
		return
	case errParse != nil:
		log.WithError(errParse).Warn("billing: rejected webhook event")
		h.resp.Error(c, http.StatusBadRequest, string(access.ValidationError), "malformed webhook event")
		return
	}
	if change == nil {
		h.resp.OK(c, http.StatusOK, "event ignored", nil)
		return
	}

	errUpdate := h.store.UpdatePlan(c.Request.Context(), change.UserID, change.Plan, h.quotaCfg.PlanLimit(change.Plan))
	if errors.Is(errUpdate, store.ErrNotFound) {
		log.WithField("user_id", change.UserID).Warn("billing: webhook for unknown user")
		h.resp.OK(c, http.StatusOK, "event ignored", nil)
		return
	}
	if errUpdate != nil {
		h.resp.InternalError(c, errUpdate, "apply plan change failed")
		return
	}
	log.WithFields(log.Fields{
		"user_id":    change.UserID,
		"plan":       change.Plan,
		"session_id": change.SessionID,
	}).Info("plan upgraded")
	h.resp.OK(c, http.StatusOK, "plan updated", gin.H{"user_id": change.UserID, "plan": change.Plan})
}
