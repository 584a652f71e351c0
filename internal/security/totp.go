package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

// pendingTOTPTTL bounds how long an unconfirmed secret stays valid.
const pendingTOTPTTL = 10 * time.Minute

// TOTPEnrollment is a freshly generated, not yet confirmed TOTP secret.
type TOTPEnrollment struct {
	Secret     string
	OTPAuthURL string
	QRImage    string // PNG data URL, empty if rendering failed.
}

// NewTOTPEnrollment generates a TOTP secret for accountName.
func NewTOTPEnrollment(issuer, accountName string) (TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	out := TOTPEnrollment{Secret: key.Secret(), OTPAuthURL: key.URL()}
	if img, errImage := key.Image(220, 220); errImage == nil {
		var buf bytes.Buffer
		if errEncode := png.Encode(&buf, img); errEncode == nil {
			out.QRImage = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	return out, nil
}

// ValidateTOTP checks a 6-digit code against secret.
func ValidateTOTP(code, secret string) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}

type pendingSecret struct {
	secret  string
	expires time.Time
}

// PendingTOTPSecrets holds secrets between prepare and confirm.
type PendingTOTPSecrets struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[uint64]pendingSecret
}

// NewPendingTOTPSecrets creates an empty store using now as its clock.
func NewPendingTOTPSecrets(now func() time.Time) *PendingTOTPSecrets {
	if now == nil {
		now = time.Now
	}
	return &PendingTOTPSecrets{now: now, items: make(map[uint64]pendingSecret)}
}

// Set stores secret for userID, replacing any earlier one.
func (s *PendingTOTPSecrets) Set(userID uint64, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = pendingSecret{secret: secret, expires: s.now().Add(pendingTOTPTTL)}
}

// Get returns the pending secret for userID if it has not expired.
func (s *PendingTOTPSecrets) Get(userID uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[userID]
	if !ok {
		return "", false
	}
	if s.now().After(entry.expires) {
		delete(s.items, userID)
		return "", false
	}
	return entry.secret, true
}

// Delete removes the pending secret for userID.
func (s *PendingTOTPSecrets) Delete(userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, userID)
}
