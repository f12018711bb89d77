package config

// Config is the top-level configuration structure for pkgdev.
type Config struct {
	Bugs   BugsConfig   `yaml:"bugs"`
	Commit CommitConfig `yaml:"commit"`
	Mask   MaskConfig   `yaml:"mask"`
	Push   PushConfig   `yaml:"push"`
}

// BugsConfig carries the defaults for the bugs subcommand.
type BugsConfig struct {
	// APIKey is the Bugzilla API key; APIKeyFile points at a file holding it
	// instead, which wins when both are set.
	APIKey     string `yaml:"api-key,omitempty"`
	APIKeyFile string `yaml:"api-key-file,omitempty"`
	// AutoCCArches lists maintainer emails whose bugs get the CC-ARCHES
	// keyword automatically; "*" applies it to everyone.
	AutoCCArches []string `yaml:"auto-cc-arches,omitempty"`
	// Blocks are bug ids every filed target bug should block.
	Blocks []int `yaml:"blocks,omitempty"`
}

// CommitConfig carries the defaults for the commit subcommand.
type CommitConfig struct {
	Signoff bool `yaml:"signoff,omitempty"`
}

// MaskConfig carries the defaults for the mask subcommand.
type MaskConfig struct {
	// RitesDays is the default removal window for last-rites masks.
	RitesDays int `yaml:"rites-days,omitempty"`
}

// PushConfig carries the defaults for the push subcommand.
type PushConfig struct {
	// SignedRemotes lists remotes that require --signed pushes.
	SignedRemotes []string `yaml:"signed-remotes,omitempty"`
	// Pkgcheck enables the pre-push QA scan when the scanner is installed.
	Pkgcheck bool `yaml:"pkgcheck,omitempty"`
}

// DefaultConfig returns the built-in defaults applied before any file layer.
func DefaultConfig() Config {
	return Config{
		Mask: MaskConfig{RitesDays: 30},
		Push: PushConfig{Pkgcheck: true},
	}
}
