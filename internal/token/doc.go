// Package token encodes tickets into tamper-evident strings that are
// rendered as QR codes and scanned at the door.
//
// # Wire format
//
// A token is the unpadded base64url encoding of:
//
//	[version 1 byte] [key id 1 byte] [CBOR payload] [32-byte MAC]
//
// The MAC is a keyed BLAKE3 hash over everything before it. The key is
// derived from a per-deployment signing secret with HKDF-SHA256, so a
// token cannot be produced or altered without that secret. The payload
// binds the ticket id, event id, holder id, the per-ticket random
// secret and the issue time, encoded with CBOR core deterministic
// encoding so identical claims always produce identical tokens.
//
// # Key rotation
//
// A Codec signs with one primary key and verifies against the primary
// plus any retired keys, selected by the key id byte. Tokens signed by
// a key that has been dropped from the codec fail as ReasonBadSignature.
//
// # Failures
//
// Decode returns a *DecodeError whose Reason is one of ReasonMalformed,
// ReasonBadSignature or ReasonExpired. Each also matches the sentinels
// ErrMalformed, ErrBadSignature and ErrExpired through errors.Is.
package token
