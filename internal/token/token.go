package token

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

const (
	version    byte = 1
	headerSize      = 2
	macSize         = 32

	// SecretSize is the length of the random per-ticket secret.
	SecretSize = 16
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var encoding = base64.RawURLEncoding.Strict()

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("token: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("token: CBOR decoder initialization failed: " + err.Error())
	}
}

// Claims are the values bound into a token.
type Claims struct {
	TicketID string
	EventID  string
	HolderID string
	// Secret is the unpredictable per-ticket component.
	Secret   []byte
	IssuedAt time.Time
}

type payload struct {
	TicketID string `cbor:"1,keyasint"`
	EventID  string `cbor:"2,keyasint"`
	HolderID string `cbor:"3,keyasint"`
	Secret   []byte `cbor:"4,keyasint"`
	IssuedAt int64  `cbor:"5,keyasint"`
}

// ErrInvalidClaims is returned by Encode when an identifier or the secret is empty.
var ErrInvalidClaims = errors.New("token: claims require ticket, event and holder ids and a secret")

// Codec signs and verifies ticket tokens. It is safe for concurrent use.
type Codec struct {
	primary Key
	keys    map[uint8]Key
	maxAge  time.Duration
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxAge makes tokens older than d fail with ReasonExpired. Zero
// disables expiry.
func WithMaxAge(d time.Duration) Option {
	return func(c *Codec) { c.maxAge = d }
}

// WithRetiredKeys adds keys that are accepted for verification only.
func WithRetiredKeys(keys ...Key) Option {
	return func(c *Codec) {
		for _, k := range keys {
			if k.ID == c.primary.ID {
				continue
			}
			c.keys[k.ID] = k
		}
	}
}

// NewCodec returns a Codec that signs with primary.
func NewCodec(primary Key, opts ...Option) *Codec {
	c := &Codec{
		primary: primary,
		keys:    map[uint8]Key{primary.ID: primary},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode produces the token for claims. It is deterministic and has no
// side effects.
func (c *Codec) Encode(claims Claims) (string, error) {
	if claims.TicketID == "" || claims.EventID == "" || claims.HolderID == "" || len(claims.Secret) == 0 {
		return "", ErrInvalidClaims
	}
	body, err := encMode.Marshal(payload{
		TicketID: claims.TicketID,
		EventID:  claims.EventID,
		HolderID: claims.HolderID,
		Secret:   claims.Secret,
		IssuedAt: claims.IssuedAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("token: encoding payload: %w", err)
	}

	raw := make([]byte, 0, headerSize+len(body)+macSize)
	raw = append(raw, version, c.primary.ID)
	raw = append(raw, body...)
	raw = append(raw, sum(c.primary, raw)...)
	return encoding.EncodeToString(raw), nil
}

// Decode verifies s and returns its claims.
func (c *Codec) Decode(s string) (Claims, error) {
	return c.DecodeAt(s, time.Now())
}

// DecodeAt is like Decode but checks expiry against now.
func (c *Codec) DecodeAt(s string, now time.Time) (Claims, error) {
	if s == "" {
		return Claims{}, malformed(errors.New("empty token"))
	}
	// The decoder skips CR and LF even in strict mode; reject them here so
	// the accepted string is exactly what was signed.
	if i := strings.IndexFunc(s, func(r rune) bool { return !strings.ContainsRune(alphabet, r) }); i >= 0 {
		return Claims{}, malformed(fmt.Errorf("invalid character at offset %d", i))
	}
	raw, err := encoding.DecodeString(s)
	if err != nil {
		return Claims{}, malformed(err)
	}
	if len(raw) <= headerSize+macSize {
		return Claims{}, malformed(errors.New("token too short"))
	}
	if raw[0] != version {
		return Claims{}, malformed(fmt.Errorf("unsupported version %d", raw[0]))
	}

	key, ok := c.keys[raw[1]]
	if !ok {
		return Claims{}, &DecodeError{Reason: ReasonBadSignature, Err: fmt.Errorf("unknown key id %d", raw[1])}
	}
	split := len(raw) - macSize
	if subtle.ConstantTimeCompare(sum(key, raw[:split]), raw[split:]) != 1 {
		return Claims{}, &DecodeError{Reason: ReasonBadSignature}
	}

	var p payload
	if err := decMode.Unmarshal(raw[headerSize:split], &p); err != nil {
		return Claims{}, malformed(err)
	}
	if p.TicketID == "" || p.EventID == "" || p.HolderID == "" {
		return Claims{}, malformed(errors.New("missing identifier"))
	}

	claims := Claims{
		TicketID: p.TicketID,
		EventID:  p.EventID,
		HolderID: p.HolderID,
		Secret:   p.Secret,
		IssuedAt: time.Unix(p.IssuedAt, 0).UTC(),
	}
	if c.maxAge > 0 && now.Sub(claims.IssuedAt) > c.maxAge {
		return Claims{}, &DecodeError{Reason: ReasonExpired}
	}
	return claims, nil
}

func sum(k Key, data []byte) []byte {
	h, err := blake3.NewKeyed(k.material[:])
	if err != nil {
		panic("token: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = h.Write(data)
	return h.Sum(nil)
}

func malformed(err error) *DecodeError {
	return &DecodeError{Reason: ReasonMalformed, Err: err}
}
