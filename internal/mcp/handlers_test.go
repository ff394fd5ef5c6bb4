package mcp

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func testMCPServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	policyPath := filepath.Join(dir, "policy.yaml")
	err := os.WriteFile(policyPath, []byte("impact_by_tool:\n  send_payment: money\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	keys := map[string]any{
		"trusted_keys": map[string]any{
			"signer_v1": base64.StdEncoding.EncodeToString(pub),
		},
		"revoked_keys": []string{"old_signer"},
	}
	keysPath := filepath.Join(dir, "keys.json")
	data, _ := json.Marshal(keys)
	if err := os.WriteFile(keysPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	srv, err := New(Config{PolicyPath: policyPath, KeyringPath: keysPath})
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func TestHandleCheckAllowed(t *testing.T) {
	srv := testMCPServer(t)

	res, out, err := srv.handleCheck(context.Background(), nil, CheckInput{
		Tool: "send_payment",
		Args: map[string]any{
			"__pic": map[string]any{
				"protocol": "PIC/1.0",
				"intent":   "refund duplicate charge",
				"impact":   "money",
				"provenance": []any{
					map[string]any{"id": "src_ledger", "trust": "trusted"},
				},
				"claims": []any{
					map[string]any{"text": "charge appears twice", "evidence": []any{"src_ledger"}},
				},
				"action": map[string]any{"tool": "send_payment"},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Errorf("allowed call must not carry an error result, got %+v", res)
	}
	if !out.Allowed || out.Code != "" {
		t.Errorf("expected allowed output, got %+v", out)
	}
}

func TestHandleCheckBlocked(t *testing.T) {
	srv := testMCPServer(t)

	res, out, err := srv.handleCheck(context.Background(), nil, CheckInput{
		Tool: "send_payment",
		Args: map[string]any{"amount": 1.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || !res.IsError {
		t.Error("blocked call must set IsError")
	}
	if out.Allowed || out.Code != "PIC_NO_PROPOSAL" {
		t.Errorf("expected PIC_NO_PROPOSAL, got %+v", out)
	}
}

func TestHandleKeys(t *testing.T) {
	srv := testMCPServer(t)

	_, out, err := srv.handleKeys(context.Background(), nil, KeysInput{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Keys) != 1 || out.Keys[0].ID != "signer_v1" || out.Keys[0].Status != "ok" {
		t.Errorf("unexpected keys %+v", out.Keys)
	}
	if len(out.Revoked) != 1 || out.Revoked[0] != "old_signer" {
		t.Errorf("unexpected revoked %+v", out.Revoked)
	}
}
