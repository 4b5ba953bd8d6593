package store

import (
	"time"

	"github.com/jacentio/itinera/patch"
)

// SummaryVersion is the summary layout produced by this code. Bump it when
// the Summary fields or their derivation change; stored summaries with any
// other version are recomputed on read.
const SummaryVersion = 3

// Config holds configuration for the Store.
type Config struct {
	// PendingDeleteTTL is how long a deleted trip stays masked. It should
	// cover the backend's worst-case propagation delay.
	// Default: 600s
	PendingDeleteTTL time.Duration `yaml:"pending_delete_ttl"`

	// ScanPageSize is the page size used by authoritative prefix scans.
	// Default: 1000
	// Max: 10000
	ScanPageSize int `yaml:"scan_page_size"`

	// SummaryVersion is the version a stored summary must carry to be reused.
	// Default: SummaryVersion
	SummaryVersion int `yaml:"summary_version"`

	// SummaryConcurrency bounds concurrent summary reads in GetMany.
	// Default: 8
	SummaryConcurrency int `yaml:"summary_concurrency"`

	// Patch limits partial updates.
	Patch patch.Limits `yaml:"patch"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PendingDeleteTTL:   600 * time.Second,
		ScanPageSize:       1000,
		SummaryVersion:     SummaryVersion,
		SummaryConcurrency: 8,
		Patch:              patch.DefaultLimits(),
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.PendingDeleteTTL <= 0 {
		c.PendingDeleteTTL = 600 * time.Second
	}
	if c.ScanPageSize < 1 {
		c.ScanPageSize = 1000
	}
	if c.ScanPageSize > 10000 {
		c.ScanPageSize = 10000
	}
	if c.SummaryVersion == 0 {
		c.SummaryVersion = SummaryVersion
	}
	if c.SummaryConcurrency < 1 {
		c.SummaryConcurrency = 8
	}
}
