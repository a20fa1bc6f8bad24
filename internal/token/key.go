package token

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// MinSecretSize is the shortest signing secret accepted by NewKey.
const MinSecretSize = 32

const keyInfo = "ticket-checkin/token-mac/v1"

// Key is a derived MAC key and the id written into tokens it signs.
type Key struct {
	ID       uint8
	material [32]byte
}

// NewKey derives a MAC key from a deployment signing secret.
func NewKey(id uint8, secret []byte) (Key, error) {
	if len(secret) < MinSecretSize {
		return Key{}, fmt.Errorf("token: signing secret for key %d is %d bytes, need at least %d", id, len(secret), MinSecretSize)
	}
	k := Key{ID: id}
	r := hkdf.New(sha256.New, secret, nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, k.material[:]); err != nil {
		return Key{}, fmt.Errorf("token: derive key %d: %w", id, err)
	}
	return k, nil
}

// ParseKeys reads a comma separated list of "id:secret" pairs, the format
// used to configure retired keys.
func ParseKeys(s string) ([]Key, error) {
	var keys []Key
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idStr, secret, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("token: key entry %q is not id:secret", part)
		}
		id, err := strconv.ParseUint(idStr, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("token: key id %q: %w", idStr, err)
		}
		k, err := NewKey(uint8(id), []byte(secret))
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
