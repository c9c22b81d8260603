package config

import (
	"fmt"
	"time"
)

// TimeoutConfig centralizes the content-verification timeout budgets.
// The AWS console backend routinely takes longer than the usual 30s
// HTTP default to render resource data, and some service backends (RDS
// in particular) are far slower than others. Rather than one hardcoded
// constant, each service is assigned a target class and every class
// carries its own budget. The shortest timeout in a chain wins, so
// callers pass these budgets into the contexts they derive.
type TimeoutConfig struct {
	// Classes maps a target-class name to a duration string.
	// The "default" class must always be present.
	Classes map[string]string `yaml:"classes"`

	// Services maps a service name to its target class. Services not
	// listed here use the "default" class.
	Services map[string]string `yaml:"services"`
}

// DefaultTimeoutConfig returns the default budget table. The numbers are
// defaults, not requirements; operators tune them per deployment.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Classes: map[string]string{
			"default": "30s",
			"slow":    "120s",
			"rds":     "180s",
		},
		Services: map[string]string{
			"rds":        "rds",
			"backup":     "slow",
			"cloudtrail": "slow",
		},
	}
}

// Validate checks that every referenced class exists and parses.
func (t TimeoutConfig) Validate() error {
	if _, ok := t.Classes["default"]; !ok {
		return fmt.Errorf("timeouts.classes must define a \"default\" class")
	}
	for name, raw := range t.Classes {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("timeouts.classes[%s]: %w", name, err)
		}
	}
	for svc, class := range t.Services {
		if _, ok := t.Classes[class]; !ok {
			return fmt.Errorf("timeouts.services[%s] references unknown class %q", svc, class)
		}
	}
	return nil
}

// BudgetFor returns the verification budget for the given service.
func (t TimeoutConfig) BudgetFor(service string) time.Duration {
	class := "default"
	if c, ok := t.Services[service]; ok {
		class = c
	}
	raw, ok := t.Classes[class]
	if !ok {
		raw = t.Classes["default"]
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
