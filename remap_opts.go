package jarmap

import (
	"log/slog"

	"github.com/meigma/jarmap/cache/disk"
	"github.com/meigma/jarmap/mapping"
	"github.com/meigma/jarmap/rewrite"
)

// PolicyPublicify is the id of the default access policy.
const PolicyPublicify = "publicify"

// RemapOption configures a Remap call.
type RemapOption func(*remapConfig)

type remapConfig struct {
	direction       mapping.Direction
	policy          rewrite.AccessPolicy
	policyID        string
	workers         int
	maxDepth        int
	cacheSize       int
	stripSignatures bool
	logger          *slog.Logger
	progress        ProgressFunc
	cache           *disk.Cache
}

func newRemapConfig(opts []RemapOption) *remapConfig {
	cfg := &remapConfig{
		direction:       mapping.Deobfuscating,
		policy:          rewrite.Publicify,
		policyID:        PolicyPublicify,
		stripSignatures: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *remapConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// RemapWithDirection sets the translation direction (default: Deobfuscating).
func RemapWithDirection(dir mapping.Direction) RemapOption {
	return func(cfg *remapConfig) {
		cfg.direction = dir
	}
}

// RemapWithPolicy sets the access policy applied to declarations.
//
// The id names the policy in cache keys, so two different policies must
// never share an id. A nil policy leaves flags unchanged.
func RemapWithPolicy(id string, policy rewrite.AccessPolicy) RemapOption {
	return func(cfg *remapConfig) {
		if policy == nil {
			policy = rewrite.Preserve
		}
		cfg.policyID = id
		cfg.policy = policy
	}
}

// RemapWithWorkers sets the number of concurrent class rewrites.
// Values < 1 use GOMAXPROCS.
func RemapWithWorkers(n int) RemapOption {
	return func(cfg *remapConfig) {
		cfg.workers = n
	}
}

// RemapWithMaxDepth bounds inheritance walks.
// Values < 1 use classindex.DefaultMaxDepth.
func RemapWithMaxDepth(n int) RemapOption {
	return func(cfg *remapConfig) {
		cfg.maxDepth = n
	}
}

// RemapWithMemberCache sets the size of the translator's member memo.
// Values < 0 disable it; 0 uses translate.DefaultCacheSize.
func RemapWithMemberCache(n int) RemapOption {
	return func(cfg *remapConfig) {
		cfg.cacheSize = n
	}
}

// RemapWithStripSignatures controls whether jar signature files are dropped
// (default: true).
func RemapWithStripSignatures(strip bool) RemapOption {
	return func(cfg *remapConfig) {
		cfg.stripSignatures = strip
	}
}

// RemapWithLogger sets the logger for remap diagnostics.
func RemapWithLogger(logger *slog.Logger) RemapOption {
	return func(cfg *remapConfig) {
		cfg.logger = logger
	}
}

// RemapWithProgress sets a callback for progress updates.
func RemapWithProgress(fn ProgressFunc) RemapOption {
	return func(cfg *remapConfig) {
		cfg.progress = fn
	}
}

// RemapWithCache reuses and stores results in c.
func RemapWithCache(c *disk.Cache) RemapOption {
	return func(cfg *remapConfig) {
		cfg.cache = c
	}
}
