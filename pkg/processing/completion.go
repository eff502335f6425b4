package processing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result a provider reports asynchronously.
type Outcome string

const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeAssetsReady Outcome = "assets_ready"
	OutcomeFailed      Outcome = "failed"
)

// Completion is the asynchronous callback of a provider, delivered by webhook
// or by message queue.
type Completion struct {
	ID         string    `json:"id,omitempty"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	Outcome    Outcome   `json:"outcome"`
	Handoff
	Reason string `json:"reason,omitempty"`
}

func (c Completion) Validate() error {
	if c.TenantID == uuid.Nil || c.ResourceID == uuid.Nil {
		return fmt.Errorf("%w: tenant_id and resource_id are required", ErrInvalidPayload)
	}
	switch c.Outcome {
	case OutcomeSucceeded:
		if c.StoragePointer == "" {
			return fmt.Errorf("%w: storage_pointer is required", ErrInvalidPayload)
		}
	case OutcomeAssetsReady, OutcomeFailed:
	default:
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidPayload, c.Outcome)
	}
	return nil
}

// DecodeCompletion parses and validates a callback body.
func DecodeCompletion(payload []byte) (Completion, error) {
	var c Completion
	if err := json.Unmarshal(payload, &c); err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := c.Validate(); err != nil {
		return Completion{}, err
	}
	return c, nil
}

const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"
)

// Signer signs and verifies callback payloads with HMAC-SHA256 over
// "<unix timestamp>.<payload>".
type Signer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewSigner(secret string, maxAge time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", ErrInvalidConfig)
	}
	return &Signer{secret: []byte(secret), maxAge: maxAge, now: time.Now}, nil
}

// Sign returns the hex signature of payload at ts.
func (s *Signer) Sign(payload []byte, ts time.Time) string {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%d.%s", ts.Unix(), payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks signature and rejects timestamps outside maxAge.
// A minute of clock skew into the future is tolerated.
func (s *Signer) Verify(payload []byte, signature, timestamp string) error {
	if signature == "" || timestamp == "" {
		return fmt.Errorf("%w: missing signature headers", ErrInvalidSignature)
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}
	ts := time.Unix(unix, 0)

	if s.maxAge > 0 {
		age := s.now().Sub(ts)
		if age > s.maxAge {
			return fmt.Errorf("%w: timestamp too old", ErrInvalidSignature)
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: timestamp in the future", ErrInvalidSignature)
		}
	}

	if !hmac.Equal([]byte(s.Sign(payload, ts)), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}
