// Package credential encodes a ticket's identity and context into the
// opaque string embedded in a scannable QR code, and decodes presented
// strings back.  The current format is authenticated encryption
// (AES-256-GCM) over a JSON payload; older deployments printed the bare
// ticket number, so decoding falls back to that pattern.  Both encode
// and decode are pure – they never touch storage.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// formatPrefix marks the current encrypted credential format.  The
// version component allows rotating the envelope without breaking
// already-printed tickets.
const formatPrefix = "TG1."

// legacyNumberPattern matches the bare ticket numbers issued before
// credentials were encrypted, e.g. "SUM42-K7PQ2X".
var legacyNumberPattern = regexp.MustCompile(`^[A-Z0-9]{2,8}-[A-Z0-9]{4,10}$`)

// TicketPayload is the plaintext content of an encrypted credential.
// IssuedAt is kept as a Unix timestamp so that an encode/decode round
// trip reproduces the payload exactly.
type TicketPayload struct {
	TicketID     uint64 `json:"tid"`
	EventID      uint64 `json:"eid"`
	BookingID    uint64 `json:"bid"`
	TicketNumber string `json:"num"`
	Section      string `json:"sec,omitempty"`
	RowLabel     string `json:"row,omitempty"`
	SeatNumber   uint32 `json:"seat,omitempty"`
	IssuedAt     int64  `json:"iat"`
}

// Decoded is the result of a successful decode.  Exactly one of the
// two shapes is populated: Payload for the encrypted format, or a bare
// TicketNumber (Legacy=true) for the plain fallback.
type Decoded struct {
	Payload      *TicketPayload
	TicketNumber string
	Legacy       bool
}

// DecodeError reports that a presented string is not a usable
// credential.  It is a value, not an exception: callers branch on it
// to record the attempt as an "invalid" scan.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("credential decode failed: %s", e.Reason)
}

// ErrEmptySecret is returned by NewCodec when no deployment secret is
// configured.  Running without one would make every credential
// forgeable.
var ErrEmptySecret = errors.New("credential secret must not be empty")

// Codec holds the AEAD derived from the deployment secret.  It is safe
// for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a 256-bit key from the deployment secret and builds
// an AES-GCM codec around it.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Encode serializes the payload and seals it with AES-GCM under a
// fresh random nonce.  The output is printable and safe to embed in a
// 2-D barcode.  The ticket number is not recoverable from the output
// without the key – the plain fallback path relies on the number being
// printed alongside the code, not embedded in it.
func (c *Codec) Encode(p TicketPayload) (string, error) {
	if p.TicketNumber == "" {
		return "", errors.New("payload missing ticket number")
	}
	plain, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	return formatPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode attempts the known credential shapes in fixed precedence
// order: (1) the current encrypted format, (2) a legacy bare ticket
// number.  Anything else fails with a DecodeError.  Authentication
// failures on the encrypted path never fall through to a different
// valid interpretation – a tampered envelope cannot match the legacy
// pattern because of its prefix and alphabet.
func (c *Codec) Decode(credential string) (*Decoded, error) {
	s := strings.TrimSpace(credential)
	if s == "" {
		return nil, &DecodeError{Reason: "empty credential"}
	}
	if strings.HasPrefix(s, formatPrefix) {
		if p, err := c.open(strings.TrimPrefix(s, formatPrefix)); err == nil {
			return &Decoded{Payload: p, TicketNumber: p.TicketNumber}, nil
		}
		// Fall through: a corrupted envelope is tried against the
		// remaining shapes and then rejected, never accepted as-is.
	}
	if legacyNumberPattern.MatchString(s) {
		return &Decoded{TicketNumber: s, Legacy: true}, nil
	}
	return nil, &DecodeError{Reason: "unrecognized"}
}

// open decrypts and parses the body of a current-format credential.
func (c *Codec) open(body string) (*TicketPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, err
	}
	ns := c.aead.NonceSize()
	if len(raw) <= ns {
		return nil, errors.New("credential too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, err
	}
	var p TicketPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, err
	}
	if p.TicketNumber == "" || p.TicketID == 0 {
		return nil, errors.New("credential payload incomplete")
	}
	return &p, nil
}

// IsTicketNumber reports whether a string has the shape of a
// human-readable ticket number.  The issuer uses it as a sanity check
// on generated numbers so they stay scannable through the fallback.
func IsTicketNumber(s string) bool {
	return legacyNumberPattern.MatchString(s)
}
