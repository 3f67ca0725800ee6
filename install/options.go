package install

import (
	"log/slog"
	"strings"

	"github.com/meigma/jarmap"
)

// Option configures an Installer.
type Option func(*Installer)

// WithLogger sets the logger for install diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Installer) {
		i.logger = logger
	}
}

// WithProgress sets a callback for progress updates.
func WithProgress(fn jarmap.ProgressFunc) Option {
	return func(i *Installer) {
		i.progress = fn
	}
}

// WithDescriptorPatcher sets the collaborator that edits the copied launch
// descriptor. Without one the descriptor is copied unchanged.
func WithDescriptorPatcher(p DescriptorPatcher) Option {
	return func(i *Installer) {
		i.patcher = p
	}
}

// WithMappingsPath sets where mappings live inside the loader jar for a
// game version. Defaults to "pomf-<game>/mappings".
func WithMappingsPath(fn func(game string) string) Option {
	return func(i *Installer) {
		i.mappingsPath = fn
	}
}

// WithResourceFilter selects which vanilla entries are merged under the
// remapped classes. Defaults to DefaultResourceFilter.
func WithResourceFilter(keep func(path string) bool) Option {
	return func(i *Installer) {
		i.keep = keep
	}
}

// WithRemapOptions passes options through to jarmap.Remap.
func WithRemapOptions(opts ...jarmap.RemapOption) Option {
	return func(i *Installer) {
		i.remapOpts = append(i.remapOpts, opts...)
	}
}

// DefaultMappingsPath returns "pomf-<game>/mappings".
func DefaultMappingsPath(game string) string {
	return "pomf-" + game + "/mappings"
}

// DefaultResourceFilter keeps the vanilla assets, logging config and pack
// icon.
func DefaultResourceFilter(path string) bool {
	return strings.HasPrefix(path, "assets") ||
		strings.HasPrefix(path, "log4j2.xml") ||
		strings.HasPrefix(path, "pack.png")
}
