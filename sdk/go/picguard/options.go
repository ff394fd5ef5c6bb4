package picguard

import "github.com/openpic/picguard/internal/policy"

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	policyPath      string
	keyringPath     string
	limits          *policy.Limits
	verifyEvidence  bool
	proposalBaseDir string
	evidenceRootDir string
	debug           bool
}

// WithPolicy sets the path to a policy YAML file.
func WithPolicy(path string) Option {
	return func(c *clientConfig) { c.policyPath = path }
}

// WithKeyring sets the path to a keyring JSON file.
func WithKeyring(path string) Option {
	return func(c *clientConfig) { c.keyringPath = path }
}

// WithLimits overrides the evaluation limits from the policy file.
func WithLimits(maxEvidenceItems int, maxEvidenceFileBytes int64) Option {
	return func(c *clientConfig) {
		l := policy.DefaultLimits()
		l.MaxEvidenceItems = maxEvidenceItems
		l.MaxEvidenceFileBytes = maxEvidenceFileBytes
		c.limits = &l
	}
}

// WithEvidenceVerification enables hash and signature checking of
// attached evidence during every evaluation.
func WithEvidenceVerification() Option {
	return func(c *clientConfig) { c.verifyEvidence = true }
}

// WithBaseDir sets the base directory for file:// evidence refs.
func WithBaseDir(dir string) Option {
	return func(c *clientConfig) { c.proposalBaseDir = dir }
}

// WithEvidenceRoot sets the evidence root directory. It takes
// precedence over the base directory for ref resolution.
func WithEvidenceRoot(dir string) Option {
	return func(c *clientConfig) { c.evidenceRootDir = dir }
}

// WithDebug includes diagnostic details in blocked results.
func WithDebug() Option {
	return func(c *clientConfig) { c.debug = true }
}
