// Package policy holds the static configuration consumed by the
// evaluation pipeline: which tools are high-impact enough to require a
// proposal, and the resource ceilings for one evaluation.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openpic/picguard/internal/contract"
)

// Policy declares which tools require a PIC proposal. Tools absent from
// ImpactByTool are pass-through: no proposal is required.
type Policy struct {
	ImpactByTool map[string]contract.ImpactClass
}

// New builds a Policy from an impact map. A nil map yields an empty,
// pass-through policy.
func New(impactByTool map[string]contract.ImpactClass) *Policy {
	if impactByTool == nil {
		impactByTool = map[string]contract.ImpactClass{}
	}
	return &Policy{ImpactByTool: impactByTool}
}

// RequiresProposal reports whether calls to tool must carry a proposal:
// true iff the tool is mapped and its impact class is high-impact.
func (p *Policy) RequiresProposal(tool string) bool {
	if p == nil {
		return false
	}
	class, ok := p.ImpactByTool[tool]
	return ok && class.HighImpact()
}

// Limits bounds one evaluation: a wall-clock budget and hard ceilings
// on evidence count and file size. Exceeding any ceiling is a typed
// failure, never a silent truncation.
type Limits struct {
	MaxEvalTime          time.Duration
	MaxEvidenceItems     int
	MaxEvidenceFileBytes int64
}

// DefaultLimits returns the built-in evaluation ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxEvalTime:          2 * time.Second,
		MaxEvidenceItems:     32,
		MaxEvidenceFileBytes: 10 << 20, // 10 MiB
	}
}

// fileConfig is the on-disk YAML shape.
type fileConfig struct {
	ImpactByTool map[string]string `yaml:"impact_by_tool"`
	Limits       *limitsConfig     `yaml:"limits"`
}

type limitsConfig struct {
	MaxEvalTime          string `yaml:"max_eval_time"`
	MaxEvidenceItems     int    `yaml:"max_evidence_items"`
	MaxEvidenceFileBytes int64  `yaml:"max_evidence_file_bytes"`
}

// Load reads policy configuration from a YAML file. An empty path or a
// missing file yields the empty pass-through policy and default limits.
// Invalid YAML or an unknown impact class is an error.
func Load(path string) (*Policy, Limits, error) {
	pol, limits, _, err := LoadWithHash(path)
	return pol, limits, err
}

// LoadWithHash additionally returns the SHA-256 of the raw config bytes,
// for logging which policy produced a decision. Defaults hash to the
// digest of empty input.
func LoadWithHash(path string) (*Policy, Limits, string, error) {
	limits := DefaultLimits()
	if path == "" {
		h := sha256.Sum256(nil)
		return New(nil), limits, "sha256:" + hex.EncodeToString(h[:]), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return New(nil), limits, "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, limits, "", fmt.Errorf("failed to read policy config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, limits, "", fmt.Errorf("failed to parse policy config: %w", err)
	}

	impactByTool := make(map[string]contract.ImpactClass, len(cfg.ImpactByTool))
	for tool, raw := range cfg.ImpactByTool {
		class, err := contract.ParseImpactClass(raw)
		if err != nil {
			return nil, limits, "", fmt.Errorf("policy config: tool %q: %w", tool, err)
		}
		impactByTool[tool] = class
	}

	if cfg.Limits != nil {
		if cfg.Limits.MaxEvalTime != "" {
			d, err := time.ParseDuration(cfg.Limits.MaxEvalTime)
			if err != nil {
				return nil, limits, "", fmt.Errorf("policy config: limits.max_eval_time: %w", err)
			}
			limits.MaxEvalTime = d
		}
		if cfg.Limits.MaxEvidenceItems > 0 {
			limits.MaxEvidenceItems = cfg.Limits.MaxEvidenceItems
		}
		if cfg.Limits.MaxEvidenceFileBytes > 0 {
			limits.MaxEvidenceFileBytes = cfg.Limits.MaxEvidenceFileBytes
		}
	}

	h := sha256.Sum256(data)
	return New(impactByTool), limits, "sha256:" + hex.EncodeToString(h[:]), nil
}
