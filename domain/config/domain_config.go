package config

import "fmt"

// SchemaLatest is the schema version written by this build.
const SchemaLatest = 5

// DomainConfig holds all configurable rules of the thought graph
type DomainConfig struct {
	// Rank constraints
	RankIncrement float64

	// Thought constraints
	MaxValueLength   int
	EllipsizeLength  int
	MetaPrefix       string
	MaxImportDepth   int
	MaxImportEntries int

	// Schema
	SchemaVersion int

	// Sync rules
	DataIntegrityCheck bool
	MirroredSettings   []string

	// Feature flags
	DisableThoughtHashing bool
	EnableRemoteSync      bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		// Rank constraints
		RankIncrement: 1,

		// Thought constraints
		MaxValueLength:   10000,
		EllipsizeLength:  25,
		MetaPrefix:       "=",
		MaxImportDepth:   64,
		MaxImportEntries: 100000,

		// Schema
		SchemaVersion: SchemaLatest,

		// Sync rules
		DataIntegrityCheck: false,
		MirroredSettings:   []string{"Font Size", "Tutorial", "Last Updated", "Theme"},

		// Feature flags
		DisableThoughtHashing: false,
		EnableRemoteSync:      true,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Guard remote payloads in production
	config.DataIntegrityCheck = true

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Readable keys in the local store
	config.DisableThoughtHashing = true

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.RankIncrement <= 0 {
		return fmt.Errorf("rank increment must be positive, got %v", c.RankIncrement)
	}
	if c.EllipsizeLength < 4 {
		return fmt.Errorf("ellipsize length must be at least 4, got %d", c.EllipsizeLength)
	}
	if c.MaxImportDepth <= 0 {
		return fmt.Errorf("max import depth must be positive, got %d", c.MaxImportDepth)
	}
	return nil
}
