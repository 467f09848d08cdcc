package fetch

import (
	"fmt"
	"time"
)

// RetryPolicy bounds the attempts for a single fetch and shapes the delay
// between them. It is a plain value so callers can carry and compare it.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts" json:"max_attempts"`
	Initial     time.Duration `yaml:"initial" mapstructure:"initial" json:"initial"`
	Max         time.Duration `yaml:"max" mapstructure:"max" json:"max"`
	Multiplier  float64       `yaml:"multiplier" mapstructure:"multiplier" json:"multiplier"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Initial:     500 * time.Millisecond,
		Max:         5 * time.Second,
		Multiplier:  2.0,
	}
}

// Validate checks the policy for usable values.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Initial <= 0 {
		return fmt.Errorf("initial backoff must be positive, got %v", p.Initial)
	}
	if p.Max < p.Initial {
		return fmt.Errorf("max backoff %v is below initial %v", p.Max, p.Initial)
	}
	if p.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be at least 1.0, got %v", p.Multiplier)
	}
	return nil
}

// Backoff returns the delay before the attempt following the given one.
// Attempt 1 waits Initial; each further attempt multiplies, capped at Max.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return p.Initial
	}
	d := float64(p.Initial)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.Max) {
			return p.Max
		}
	}
	return time.Duration(d)
}
