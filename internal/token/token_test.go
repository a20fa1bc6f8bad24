package token

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, id uint8, seed string) Key {
	t.Helper()
	k, err := NewKey(id, []byte(strings.Repeat(seed, MinSecretSize)))
	require.NoError(t, err)
	return k
}

func testClaims() Claims {
	return Claims{
		TicketID: "b9f6c1c4-5b1e-4d0c-9a43-2f1e0f3c9d11",
		EventID:  "evt-1",
		HolderID: "usr-1",
		Secret:   bytes.Repeat([]byte{0xA5}, SecretSize),
		IssuedAt: time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC),
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec(testKey(t, 1, "k"))

	cases := []Claims{
		testClaims(),
		{TicketID: "t", EventID: "e", HolderID: "h", Secret: []byte{0}, IssuedAt: time.Unix(0, 0)},
		{TicketID: "ticket/with:odd chars", EventID: "évènement", HolderID: "用户", Secret: bytes.Repeat([]byte{0xFF}, 64), IssuedAt: time.Unix(1<<40, 0)},
	}
	for i, claims := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			tok, err := codec.Encode(claims)
			require.NoError(t, err)

			got, err := codec.Decode(tok)
			require.NoError(t, err)
			assert.Equal(t, claims.TicketID, got.TicketID)
			assert.Equal(t, claims.EventID, got.EventID)
			assert.Equal(t, claims.HolderID, got.HolderID)
			assert.Equal(t, claims.Secret, got.Secret)
			assert.Equal(t, claims.IssuedAt.Unix(), got.IssuedAt.Unix())
		})
	}
}

func TestCodec_EncodeIsDeterministic(t *testing.T) {
	codec := NewCodec(testKey(t, 1, "k"))

	first, err := codec.Encode(testClaims())
	require.NoError(t, err)
	second, err := codec.Encode(testClaims())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other := testClaims()
	other.Secret = bytes.Repeat([]byte{0x5A}, SecretSize)
	third, err := codec.Encode(other)
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "a different per-ticket secret must change the token")
}

func TestCodec_EncodeRejectsIncompleteClaims(t *testing.T) {
	codec := NewCodec(testKey(t, 1, "k"))

	for _, mutate := range []func(*Claims){
		func(c *Claims) { c.TicketID = "" },
		func(c *Claims) { c.EventID = "" },
		func(c *Claims) { c.HolderID = "" },
		func(c *Claims) { c.Secret = nil },
	} {
		claims := testClaims()
		mutate(&claims)
		_, err := codec.Encode(claims)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	}
}

func TestCodec_SingleBitFlipsNeverDecode(t *testing.T) {
	codec := NewCodec(testKey(t, 1, "k"))
	tok, err := codec.Encode(testClaims())
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := []byte(tok)
			mutated[i] ^= 1 << bit

			_, err := codec.Decode(string(mutated))
			require.Error(t, err, "flip of bit %d at offset %d decoded", bit, i)

			var de *DecodeError
			require.True(t, errors.As(err, &de), "offset %d bit %d: %v", i, bit, err)
			assert.Contains(t, []Reason{ReasonMalformed, ReasonBadSignature}, de.Reason)
		}
	}
}

func TestCodec_DecodeMalformed(t *testing.T) {
	codec := NewCodec(testKey(t, 1, "k"))
	tok, err := codec.Encode(testClaims())
	require.NoError(t, err)

	cases := map[string]string{
		"empty":           "",
		"not base64":      "!!!!",
		"short":           "AQE",
		"newline":         tok[:10] + "\n" + tok[10:],
		"padded":          tok + "==",
		"truncated":       tok[:len(tok)-4],
		"json":            `{"ticket_id":"x"}`,
		"legacy sha hash": strings.Repeat("ab", 32),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(input)
			require.Error(t, err)
			reason, ok := ReasonOf(err)
			require.True(t, ok)
			assert.NotEqual(t, ReasonExpired, reason)
		})
	}
}

func TestCodec_WrongSecretIsBadSignature(t *testing.T) {
	signer := NewCodec(testKey(t, 1, "k"))
	verifier := NewCodec(testKey(t, 1, "x"))

	tok, err := signer.Encode(testClaims())
	require.NoError(t, err)

	_, err = verifier.Decode(tok)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestCodec_Expiry(t *testing.T) {
	codec := NewCodec(testKey(t, 1, "k"), WithMaxAge(48*time.Hour))
	claims := testClaims()
	tok, err := codec.Encode(claims)
	require.NoError(t, err)

	_, err = codec.DecodeAt(tok, claims.IssuedAt.Add(47*time.Hour))
	require.NoError(t, err)

	_, err = codec.DecodeAt(tok, claims.IssuedAt.Add(49*time.Hour))
	assert.ErrorIs(t, err, ErrExpired)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonExpired, reason)

	// Without a max age tokens never expire.
	forever := NewCodec(testKey(t, 1, "k"))
	_, err = forever.DecodeAt(tok, claims.IssuedAt.Add(10*365*24*time.Hour))
	assert.NoError(t, err)
}

func TestCodec_KeyRotation(t *testing.T) {
	oldKey := testKey(t, 1, "old")
	newKey := testKey(t, 2, "new")

	before := NewCodec(oldKey)
	tok, err := before.Encode(testClaims())
	require.NoError(t, err)

	rotated := NewCodec(newKey, WithRetiredKeys(oldKey))
	got, err := rotated.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.EventID)

	fresh, err := rotated.Encode(testClaims())
	require.NoError(t, err)
	assert.NotEqual(t, tok, fresh)

	dropped := NewCodec(newKey)
	_, err = dropped.Decode(tok)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestNewKey_RejectsShortSecret(t *testing.T) {
	_, err := NewKey(1, []byte("short"))
	assert.Error(t, err)
}

func TestParseKeys(t *testing.T) {
	secret := strings.Repeat("s", MinSecretSize)

	keys, err := ParseKeys(fmt.Sprintf("3:%s, 7:%s,", secret, secret))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, uint8(3), keys[0].ID)
	assert.Equal(t, uint8(7), keys[1].ID)

	keys, err = ParseKeys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = ParseKeys("nocolon")
	assert.Error(t, err)
	_, err = ParseKeys("300:" + secret)
	assert.Error(t, err)
	_, err = ParseKeys("1:tooshort")
	assert.Error(t, err)
}
