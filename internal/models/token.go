package models

import "time"

// Token target types
const (
	TargetEvent = "event"
	TargetQuick = "quick"
)

// QRToken is the persisted record behind a scannable code, for either a
// registered event or an anonymous quick-share session.
type QRToken struct {
	ID         string     `json:"id"`
	TargetType string     `json:"target_type"` // "event" or "quick"
	TargetID   *string    `json:"target_id,omitempty"`
	QuickID    *string    `json:"quick_id,omitempty"`
	Title      string     `json:"title"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ScanCount  int        `json:"scan_count"`
}

// Expired reports whether the token is past its expiry at the given instant.
// Tokens without an expiry (event tokens) never expire.
func (t *QRToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// ScanLog records a single resolution of a token.
type ScanLog struct {
	ID          int       `json:"id"`
	TokenID     string    `json:"token_id"`
	ScannerID   *string   `json:"scanner_id,omitempty"`
	ScannerName *string   `json:"scanner_name,omitempty"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// QuickSession is the container for a quick-share's photos. It is created in
// the same transaction as its QRToken and deleted together with it.
type QuickSession struct {
	QuickID   string    `json:"quick_id"`
	TokenID   string    `json:"token_id"`
	CreatedBy *string   `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateQuickTokenRequest struct {
	Title     string  `json:"title" validate:"required,max=120"`
	ExpiresIn float64 `json:"expiresIn" validate:"required,gt=0,lte=168"` // hours
}

type CreateEventTokenRequest struct {
	EventID string `json:"event_id" validate:"required,uuid4"`
	Title   string `json:"title" validate:"max=120"`
}

type ScanRequest struct {
	ScannerID   *string `json:"scannerId,omitempty"`
	ScannerName *string `json:"scannerName,omitempty"`
}

// CreateTokenResponse carries the stored token plus the rendered QR image.
type CreateTokenResponse struct {
	Token  *QRToken `json:"token"`
	QRCode string   `json:"qr_code"` // base64 PNG data URL
	URL    string   `json:"url"`     // the URL the QR encodes
}
