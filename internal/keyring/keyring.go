// Package keyring is the trusted signing-key registry: an immutable,
// point-in-time view of which Ed25519 keys are trusted, expired, or
// revoked. Revocation always outranks presence and expiry.
package keyring

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// DefaultPath is the conventional keyring file looked up when no
// explicit location is given.
const DefaultPath = "pic_keys.json"

// Key is a single trusted key entry. ExpiresAt nil means the key never
// expires.
type Key struct {
	PublicKey ed25519.PublicKey
	ExpiresAt *time.Time
}

// Status classifies a key id at a point in time.
type Status string

const (
	StatusOK      Status = "ok"
	StatusMissing Status = "missing"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Ring is an immutable trusted-key registry. Safe for concurrent reads.
type Ring struct {
	keys    map[string]Key
	revoked map[string]bool
}

// Empty returns a registry with no trusted keys. Signature evidence can
// never verify against it — fail-closed, not fail-open.
func Empty() *Ring {
	return &Ring{keys: map[string]Key{}, revoked: map[string]bool{}}
}

// ParsePublicKey parses a public key string into raw Ed25519 bytes.
// Accepted formats: hex (64 chars, optional 0x prefix), standard or
// URL-safe base64 (padding optional), and PEM SubjectPublicKeyInfo.
// Anything not decoding to exactly 32 bytes is rejected.
func ParsePublicKey(value string) (ed25519.PublicKey, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, fmt.Errorf("public key must be a non-empty string")
	}

	if strings.HasPrefix(v, "-----BEGIN") {
		return parsePEMPublicKey(v)
	}

	if raw, ok := tryHexKey(v); ok {
		return checkKeyLength(raw)
	}

	raw, err := decodeBase64(v)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 public key: %w", err)
	}
	return checkKeyLength(raw)
}

func parsePEMPublicKey(v string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(v))
	if block == nil {
		return nil, fmt.Errorf("invalid PEM public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid PEM public key: %w", err)
	}
	ed, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("PEM public key is not Ed25519")
	}
	return ed, nil
}

func tryHexKey(v string) ([]byte, bool) {
	s := v
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		s = s[2:]
	}
	if len(s) != 64 {
		return nil, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func decodeBase64(v string) ([]byte, error) {
	// Accept URL-safe alphabet and missing padding.
	s := strings.ReplaceAll(strings.ReplaceAll(v, "-", "+"), "_", "/")
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	return base64.StdEncoding.DecodeString(s)
}

func checkKeyLength(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has invalid length %d bytes (expected %d for Ed25519)", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// ParseExpiry parses an ISO-8601 timestamp. A trailing Z means +00:00,
// a timestamp with no offset is treated as UTC, and the result is
// always normalized to UTC.
func ParseExpiry(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("expires_at must be a non-empty string")
	}

	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid expires_at %q (expected ISO-8601 datetime)", v)
}

// FromConfig builds a Ring from a decoded keyring document. Two shapes
// are supported:
//
//	{"trusted_keys": {"id": "<key>" | {"public_key": ..., "expires_at": ...}},
//	 "revoked_keys": ["id"]}
//
// and the legacy flat map of id -> key string (no revocation).
func FromConfig(doc map[string]any) (*Ring, error) {
	if doc == nil {
		return nil, fmt.Errorf("keyring document must be an object")
	}

	if tk, ok := doc["trusted_keys"].(map[string]any); ok {
		keys, err := parseTrustedKeys(tk)
		if err != nil {
			return nil, err
		}

		revoked := map[string]bool{}
		if rk, present := doc["revoked_keys"]; present && rk != nil {
			list, ok := rk.([]any)
			if !ok {
				return nil, fmt.Errorf("revoked_keys must be a list of strings")
			}
			for _, entry := range list {
				s, ok := entry.(string)
				if !ok {
					return nil, fmt.Errorf("revoked_keys must be a list of strings")
				}
				if s = strings.TrimSpace(s); s != "" {
					revoked[s] = true
				}
			}
		}
		return &Ring{keys: keys, revoked: revoked}, nil
	}

	// Legacy flat map: every value must be a key string.
	flat := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "trusted_keys" || k == "revoked_keys" {
			continue
		}
		if _, ok := v.(string); !ok {
			return nil, fmt.Errorf("legacy keyring format expects a map of key_id -> key string")
		}
		flat[k] = v
	}
	keys, err := parseTrustedKeys(flat)
	if err != nil {
		return nil, err
	}
	return &Ring{keys: keys, revoked: map[string]bool{}}, nil
}

func parseTrustedKeys(obj map[string]any) (map[string]Key, error) {
	out := make(map[string]Key, len(obj))
	for id, v := range obj {
		kid := strings.TrimSpace(id)
		if kid == "" {
			return nil, fmt.Errorf("key_id must be a non-empty string")
		}

		switch entry := v.(type) {
		case string:
			pub, err := ParsePublicKey(entry)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", kid, err)
			}
			out[kid] = Key{PublicKey: pub}

		case map[string]any:
			pkStr, ok := entry["public_key"].(string)
			if !ok || strings.TrimSpace(pkStr) == "" {
				return nil, fmt.Errorf("key %q: public_key must be a non-empty string", kid)
			}
			pub, err := ParsePublicKey(pkStr)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", kid, err)
			}
			k := Key{PublicKey: pub}
			if expVal, present := entry["expires_at"]; present && expVal != nil {
				expStr, ok := expVal.(string)
				if !ok {
					return nil, fmt.Errorf("key %q: expires_at must be a string", kid)
				}
				exp, err := ParseExpiry(expStr)
				if err != nil {
					return nil, fmt.Errorf("key %q: %w", kid, err)
				}
				k.ExpiresAt = &exp
			}
			out[kid] = k

		default:
			return nil, fmt.Errorf("key %q: expected key string or object", kid)
		}
	}
	return out, nil
}

// FromJSON builds a Ring from a UTF-8 JSON keyring document.
func FromJSON(data []byte) (*Ring, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("keyring must be a JSON object: %w", err)
	}
	return FromConfig(doc)
}

// LoadFile loads a keyring from a JSON file on disk.
func LoadFile(path string) (*Ring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring file %q: %w", path, err)
	}
	ring, err := FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("keyring file %q: %w", path, err)
	}
	return ring, nil
}

// LoadDefault resolves a keyring by priority: the explicit override
// path, else pic_keys.json in the working directory, else an empty
// registry. An empty registry means no signature evidence ever verifies.
func LoadDefault(override string) (*Ring, error) {
	if p := strings.TrimSpace(override); p != "" {
		return LoadFile(p)
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return LoadFile(DefaultPath)
	}
	return Empty(), nil
}

// Get returns the raw public key only if the key is active: present,
// not revoked, and not expired at now. Expiry is exclusive at the
// boundary instant.
func (r *Ring) Get(keyID string, now time.Time) (ed25519.PublicKey, bool) {
	if r.Status(keyID, now) != StatusOK {
		return nil, false
	}
	return r.keys[strings.TrimSpace(keyID)].PublicKey, true
}

// Status classifies keyID at now. Revocation takes precedence over
// missing and expired; expiry is only checked for a present,
// non-revoked key.
func (r *Ring) Status(keyID string, now time.Time) Status {
	kid := strings.TrimSpace(keyID)
	if kid == "" {
		return StatusMissing
	}
	if r.revoked[kid] {
		return StatusRevoked
	}
	entry, ok := r.keys[kid]
	if !ok {
		return StatusMissing
	}
	if entry.ExpiresAt != nil && !now.Before(*entry.ExpiresAt) {
		return StatusExpired
	}
	return StatusOK
}

// Entry returns the raw key entry even if expired. Diagnostics only.
func (r *Ring) Entry(keyID string) (Key, bool) {
	k, ok := r.keys[strings.TrimSpace(keyID)]
	return k, ok
}

// KeyIDs returns all trusted key ids in sorted order.
func (r *Ring) KeyIDs() []string {
	ids := make([]string, 0, len(r.keys))
	for id := range r.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RevokedIDs returns all revoked key ids in sorted order.
func (r *Ring) RevokedIDs() []string {
	ids := make([]string, 0, len(r.revoked))
	for id := range r.revoked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of trusted key entries.
func (r *Ring) Len() int {
	return len(r.keys)
}
