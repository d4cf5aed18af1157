package config

import "github.com/tmoreau/marginalia/internal/validation"

// Validate checks the loaded configuration against the `validate` struct
// tags, descending into every section, and returns the first set of
// violations found.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}

// ValidateRuntimeDefaults enforces the runtime config's own invariants:
// each field's range, plus default <= max via the ltefield rule. It is
// shared between startup validation and admin config patches.
func ValidateRuntimeDefaults(r RuntimeDefaults) error {
	return validation.ValidateStruct(&r)
}
