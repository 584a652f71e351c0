// Package api wires the gateway's route groups onto a gin engine.
package api

import (
	"time"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/apigate-dev/restgateway/internal/config"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/integrations"
	"github.com/apigate-dev/restgateway/internal/quota"
	"github.com/apigate-dev/restgateway/internal/ratelimit"
	"github.com/apigate-dev/restgateway/internal/security"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/apigate-dev/restgateway/internal/usage"
)

// Deps carries every component the route groups need. It is built once in
// the app package.
type Deps struct {
	Config      config.Config
	Store       *store.Store
	Ledger      *quota.Ledger
	Gate        *access.Gate
	Resp        *gatewayhttp.Responder
	Recorder    *usage.Recorder
	Limiter     *ratelimit.Limiter // Nil disables the burst limiter.
	Downloader  integrations.Downloader
	Chat        integrations.ChatModel
	Payments    integrations.Payments
	PendingTOTP *security.PendingTOTPSecrets
	Now         func() time.Time
}
