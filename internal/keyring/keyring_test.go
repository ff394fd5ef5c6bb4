package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testKey(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return pub
}

func TestParsePublicKeyHex(t *testing.T) {
	pub := testKey(t)
	hexStr := hex.EncodeToString(pub)

	got, err := ParsePublicKey(hexStr)
	if err != nil {
		t.Fatalf("hex parse failed: %v", err)
	}
	if !got.Equal(pub) {
		t.Error("hex round-trip produced a different key")
	}

	got, err = ParsePublicKey("0x" + hexStr)
	if err != nil {
		t.Fatalf("0x-prefixed hex parse failed: %v", err)
	}
	if !got.Equal(pub) {
		t.Error("0x-prefixed hex round-trip produced a different key")
	}
}

func TestParsePublicKeyBase64(t *testing.T) {
	pub := testKey(t)

	got, err := ParsePublicKey(base64.StdEncoding.EncodeToString(pub))
	if err != nil {
		t.Fatalf("std base64 parse failed: %v", err)
	}
	if !got.Equal(pub) {
		t.Error("std base64 round-trip produced a different key")
	}

	// URL-safe alphabet without padding must also parse.
	urlSafe := base64.RawURLEncoding.EncodeToString(pub)
	got, err = ParsePublicKey(urlSafe)
	if err != nil {
		t.Fatalf("url-safe base64 parse failed: %v", err)
	}
	if !got.Equal(pub) {
		t.Error("url-safe base64 round-trip produced a different key")
	}
}

func TestParsePublicKeyPEM(t *testing.T) {
	pub := testKey(t)
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	pemStr := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	got, err := ParsePublicKey(pemStr)
	if err != nil {
		t.Fatalf("PEM parse failed: %v", err)
	}
	if !got.Equal(pub) {
		t.Error("PEM round-trip produced a different key")
	}
}

func TestParsePublicKeyRejectsBadInput(t *testing.T) {
	for _, bad := range []string{
		"",
		"NOT_BASE64!!",
		"deadbeef", // valid hex, wrong length
		base64.StdEncoding.EncodeToString([]byte("short")),
	} {
		if _, err := ParsePublicKey(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseExpiry(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2027-01-02T03:04:05Z", time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2027-01-02T03:04:05+00:00", time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2027-01-02T03:04:05", time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2027-01-02", time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2027-01-02T04:04:05+01:00", time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseExpiry(c.in)
		if err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("%s: got %v, want %v", c.in, got, c.want)
		}
		if got.Location() != time.UTC {
			t.Errorf("%s: result not normalized to UTC", c.in)
		}
	}

	if _, err := ParseExpiry("not-a-date"); err == nil {
		t.Error("expected error for invalid expiry")
	}
}

func TestFromConfigStructured(t *testing.T) {
	pub := testKey(t)
	ring, err := FromConfig(map[string]any{
		"trusted_keys": map[string]any{
			"signer_a": base64.StdEncoding.EncodeToString(pub),
			"signer_b": map[string]any{
				"public_key": hex.EncodeToString(pub),
				"expires_at": "2027-01-01T00:00:00Z",
			},
		},
		"revoked_keys": []any{"old_signer"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if ring.Len() != 2 {
		t.Errorf("expected 2 keys, got %d", ring.Len())
	}
	entry, ok := ring.Entry("signer_b")
	if !ok || entry.ExpiresAt == nil {
		t.Fatal("signer_b missing or without expiry")
	}
	if !entry.ExpiresAt.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected expiry %v", entry.ExpiresAt)
	}
	if got := ring.RevokedIDs(); len(got) != 1 || got[0] != "old_signer" {
		t.Errorf("unexpected revoked ids %v", got)
	}
}

func TestFromConfigLegacyFlat(t *testing.T) {
	pub := testKey(t)
	ring, err := FromConfig(map[string]any{
		"signer_a": base64.StdEncoding.EncodeToString(pub),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ring.Entry("signer_a"); !ok {
		t.Error("legacy flat key not loaded")
	}
}

func TestFromConfigRejectsBadShapes(t *testing.T) {
	pub := base64.StdEncoding.EncodeToString(testKey(t))

	cases := []map[string]any{
		{"trusted_keys": map[string]any{"a": "NOT_BASE64!!"}},
		{"trusted_keys": map[string]any{"a": pub}, "revoked_keys": "old"},
		{"trusted_keys": map[string]any{"a": pub}, "revoked_keys": []any{1}},
		{"trusted_keys": map[string]any{"a": map[string]any{}}},
		{"trusted_keys": map[string]any{"a": map[string]any{"public_key": pub, "expires_at": "bogus"}}},
		{"signer": 42},
	}
	for i, doc := range cases {
		if _, err := FromConfig(doc); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestStatusPrecedenceAndExpiry(t *testing.T) {
	pub := testKey(t)
	exp := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ring, err := FromConfig(map[string]any{
		"trusted_keys": map[string]any{
			"active": base64.StdEncoding.EncodeToString(pub),
			"dated": map[string]any{
				"public_key": base64.StdEncoding.EncodeToString(pub),
				"expires_at": "2026-06-01T12:00:00Z",
			},
			"burned": base64.StdEncoding.EncodeToString(pub),
		},
		"revoked_keys": []any{"burned", "ghost"},
	})
	if err != nil {
		t.Fatal(err)
	}

	now := exp.Add(-time.Hour)
	if got := ring.Status("active", now); got != StatusOK {
		t.Errorf("active: got %s", got)
	}
	if got := ring.Status("nope", now); got != StatusMissing {
		t.Errorf("missing: got %s", got)
	}
	if got := ring.Status("burned", now); got != StatusRevoked {
		t.Errorf("revoked: got %s", got)
	}
	// Revocation outranks presence: a revoked id that was never a
	// trusted key still reports revoked.
	if got := ring.Status("ghost", now); got != StatusRevoked {
		t.Errorf("revoked-but-absent: got %s", got)
	}

	// Expiry is exclusive at the boundary instant.
	if got := ring.Status("dated", exp.Add(-time.Nanosecond)); got != StatusOK {
		t.Errorf("just before expiry: got %s", got)
	}
	if got := ring.Status("dated", exp); got != StatusExpired {
		t.Errorf("at expiry instant: got %s", got)
	}
	if got := ring.Status("dated", exp.Add(time.Hour)); got != StatusExpired {
		t.Errorf("after expiry: got %s", got)
	}
}

func TestGetOnlyReturnsActiveKeys(t *testing.T) {
	pub := testKey(t)
	ring, err := FromConfig(map[string]any{
		"trusted_keys": map[string]any{
			"active": base64.StdEncoding.EncodeToString(pub),
			"burned": base64.StdEncoding.EncodeToString(pub),
		},
		"revoked_keys": []any{"burned"},
	})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if got, ok := ring.Get("active", now); !ok || !got.Equal(pub) {
		t.Error("expected active key")
	}
	if _, ok := ring.Get("burned", now); ok {
		t.Error("revoked key must not be returned")
	}
	if _, ok := ring.Get("nope", now); ok {
		t.Error("missing key must not be returned")
	}
}

func TestLoadDefault(t *testing.T) {
	pub := base64.StdEncoding.EncodeToString(testKey(t))
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	if err := os.WriteFile(path, []byte(`{"trusted_keys":{"s1":"`+pub+`"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	ring, err := LoadDefault(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ring.Entry("s1"); !ok {
		t.Error("override path not loaded")
	}

	// An explicit override that does not exist is an error, not a
	// silent fallback.
	if _, err := LoadDefault(filepath.Join(dir, "absent.json")); err == nil {
		t.Error("expected error for missing override path")
	}

	// No override and no default file yields an empty ring.
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	ring, err = LoadDefault("")
	if err != nil {
		t.Fatal(err)
	}
	if ring.Len() != 0 {
		t.Errorf("expected empty ring, got %d keys", ring.Len())
	}
}

func TestFromJSONInvalid(t *testing.T) {
	if _, err := FromJSON([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := FromJSON([]byte(`[]`)); err == nil {
		t.Error("expected error for non-object document")
	}
}
