package feed

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ResubscribePolicy controls automatic recovery from a failed subscription.
// When disabled the feed stays down until Resubscribe is called.
type ResubscribePolicy struct {
	Enabled bool
	Initial time.Duration
	Max     time.Duration
}

// DefaultResubscribePolicy is disabled with sensible intervals for when it is
// turned on.
func DefaultResubscribePolicy() ResubscribePolicy {
	return ResubscribePolicy{Enabled: false, Initial: time.Second, Max: 30 * time.Second}
}

// newBackOff returns a deterministic capped exponential backoff that never
// gives up on its own.
func (p ResubscribePolicy) newBackOff() backoff.BackOff {
	if !p.Enabled {
		return &backoff.StopBackOff{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
