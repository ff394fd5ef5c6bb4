// Package evidence verifies the evidence items attached to a proposal
// (file content hashes and Ed25519 signatures) against the filesystem
// and the trusted key registry. Verification never raises: every failure
// becomes a per-item result with a reason, and verified provenance ids
// can be applied back to a proposal as a monotonic trust upgrade.
package evidence

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openpic/picguard/internal/keyring"
)

const fileScheme = "file://"

// Result is the verification outcome for one evidence item.
type Result struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Report summarizes one VerifyAll run. Results preserve input order.
// OK is the AND of all results; an empty list is vacuously OK.
type Report struct {
	OK          bool
	Results     []Result
	VerifiedIDs map[string]bool
}

// Verified reports whether the item with the given id verified ok.
func (r Report) Verified(id string) bool {
	return r.VerifiedIDs[id]
}

// System verifies evidence against a key registry. Now is the clock used
// for key expiry checks; nil means time.Now.
type System struct {
	Ring *keyring.Ring
	Now  func() time.Time
}

// NewSystem returns a System bound to the given registry. A nil ring is
// replaced with an empty registry, so signature evidence fails closed.
func NewSystem(ring *keyring.Ring) *System {
	if ring == nil {
		ring = keyring.Empty()
	}
	return &System{Ring: ring}
}

func (s *System) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// item is the closed union of recognized evidence shapes.
type itemKind int

const (
	kindHash itemKind = iota
	kindSig
	kindUnsupported
)

type item struct {
	id         string
	kind       itemKind
	rawType    string
	ref        string
	sha256     string
	payload    string
	hasPayload bool
	signature  string
	keyID      string
}

func parseItem(m map[string]any) item {
	it := item{}
	it.id, _ = m["id"].(string)
	it.rawType, _ = m["type"].(string)
	it.ref, _ = m["ref"].(string)
	it.sha256, _ = m["sha256"].(string)
	if p, ok := m["payload"].(string); ok {
		it.payload = p
		it.hasPayload = true
	}
	it.signature, _ = m["signature"].(string)
	if kid, ok := m["key_id"].(string); ok && strings.TrimSpace(kid) != "" {
		it.keyID = kid
	} else if signer, ok := m["signer"].(string); ok {
		it.keyID = signer
	}

	switch it.rawType {
	case "hash":
		it.kind = kindHash
	case "sig":
		it.kind = kindSig
	default:
		it.kind = kindUnsupported
	}
	return it
}

// VerifyAll checks every evidence item in the raw proposal payload.
// Hash refs resolve against evidenceRootDir when non-empty, else
// baseDir, and may not escape that root. The input is never mutated.
func (s *System) VerifyAll(raw map[string]any, baseDir, evidenceRootDir string) Report {
	report := Report{OK: true, VerifiedIDs: map[string]bool{}}
	if raw == nil {
		return report
	}
	list, _ := raw["evidence"].([]any)
	if len(list) == 0 {
		return report
	}

	root := evidenceRootDir
	if root == "" {
		root = baseDir
	}

	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			report.Results = append(report.Results, Result{OK: false, Message: "evidence item must be an object"})
			report.OK = false
			continue
		}
		res := s.verifyItem(parseItem(m), root)
		report.Results = append(report.Results, res)
		if res.OK {
			report.VerifiedIDs[res.ID] = true
		} else {
			report.OK = false
		}
	}
	return report
}

func (s *System) verifyItem(it item, root string) Result {
	switch it.kind {
	case kindHash:
		return s.verifyHash(it, root)
	case kindSig:
		return s.verifySig(it, root)
	default:
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("unsupported evidence type %q", it.rawType)}
	}
}

// resolveRef maps a file:// ref to a path under root, rejecting paths
// that escape the root directory.
func resolveRef(ref, root string) (string, error) {
	if !strings.HasPrefix(ref, fileScheme) {
		return "", fmt.Errorf("evidence ref must use the file:// scheme, got %q", ref)
	}
	rel := strings.TrimPrefix(ref, fileScheme)
	if rel == "" {
		return "", fmt.Errorf("evidence ref %q has an empty path", ref)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("cannot resolve evidence root: %w", err)
	}
	resolved := filepath.Join(absRoot, filepath.FromSlash(rel))

	relToRoot, err := filepath.Rel(absRoot, resolved)
	if err != nil || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("evidence ref %q escapes the evidence root", ref)
	}
	return resolved, nil
}

func (s *System) verifyHash(it item, root string) Result {
	path, err := resolveRef(it.ref, root)
	if err != nil {
		return Result{ID: it.id, OK: false, Message: err.Error()}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{ID: it.id, OK: false, Message: fmt.Sprintf("evidence file not found: %s", it.ref)}
		}
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("cannot read evidence file %s: %v", it.ref, err)}
	}
	defer f.Close()

	// Streamed digest: arbitrarily large files never load fully into memory.
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("cannot read evidence file %s: %v", it.ref, err)}
	}
	actual := hex.EncodeToString(h.Sum(nil))

	declared := strings.ToLower(strings.TrimSpace(it.sha256))
	if len(declared) != 64 || !isHex(declared) {
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("sha256 mismatch for %s: declared digest is not 64 hex characters", it.ref)}
	}
	if actual != declared {
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("sha256 mismatch for %s: declared %s, actual %s", it.ref, declared, actual)}
	}
	return Result{ID: it.id, OK: true, Message: fmt.Sprintf("sha256 verified (%s)", it.ref)}
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (s *System) verifySig(it item, root string) Result {
	keyID := strings.TrimSpace(it.keyID)
	if keyID == "" {
		return Result{ID: it.id, OK: false, Message: "signature evidence missing key_id"}
	}

	ring := s.Ring
	if ring == nil {
		ring = keyring.Empty()
	}
	now := s.now()
	switch ring.Status(keyID, now) {
	case keyring.StatusMissing:
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("signing key %q not found in keyring", keyID)}
	case keyring.StatusRevoked:
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("signing key %q is revoked", keyID)}
	case keyring.StatusExpired:
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("signing key %q is expired", keyID)}
	}
	pub, _ := ring.Get(keyID, now)

	payload, err := s.payloadBytes(it, root)
	if err != nil {
		return Result{ID: it.id, OK: false, Message: err.Error()}
	}

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(it.signature))
	if err != nil {
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("signature is not valid base64: %v", err)}
	}

	if !ed25519.Verify(pub, payload, sig) {
		return Result{ID: it.id, OK: false, Message: fmt.Sprintf("signature invalid (key %q)", keyID)}
	}
	return Result{ID: it.id, OK: true, Message: fmt.Sprintf("signature verified (key %q)", keyID)}
}

// payloadBytes resolves the signed bytes: an inline payload string, or
// the contents of a file:// ref.
func (s *System) payloadBytes(it item, root string) ([]byte, error) {
	if it.hasPayload {
		return []byte(it.payload), nil
	}
	if it.ref != "" {
		path, err := resolveRef(it.ref, root)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("evidence file not found: %s", it.ref)
			}
			return nil, fmt.Errorf("cannot read evidence file %s: %v", it.ref, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("signature evidence missing payload")
}

// ApplyVerifiedIDs returns a deep copy of the raw proposal where every
// provenance entry whose id is in verified has its trust forced to
// trusted. Upgrade only: entries outside the set are untouched and an
// already-trusted entry is unaffected. The input is never mutated.
func ApplyVerifiedIDs(raw map[string]any, verified map[string]bool) map[string]any {
	out, _ := deepCopy(raw).(map[string]any)
	if out == nil {
		return nil
	}
	list, _ := out["provenance"].([]any)
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if verified[id] {
			m["trust"] = "trusted"
		}
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

// CheckLimits enforces the evidence ceilings before any verification:
// the item count cap and the per-file size cap for file-backed items.
// A missing file is not a limit violation; it fails per-item later.
func CheckLimits(raw map[string]any, baseDir, evidenceRootDir string, maxItems int, maxFileBytes int64) error {
	if raw == nil {
		return nil
	}
	list, _ := raw["evidence"].([]any)
	if maxItems > 0 && len(list) > maxItems {
		return fmt.Errorf("evidence item count %d exceeds limit %d", len(list), maxItems)
	}
	if maxFileBytes <= 0 {
		return nil
	}

	root := evidenceRootDir
	if root == "" {
		root = baseDir
	}
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		it := parseItem(m)
		if it.kind == kindUnsupported || it.ref == "" {
			continue
		}
		path, err := resolveRef(it.ref, root)
		if err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() > maxFileBytes {
			return fmt.Errorf("evidence file %s is %d bytes, exceeds limit %d", it.ref, info.Size(), maxFileBytes)
		}
	}
	return nil
}
