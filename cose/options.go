package cose

import "time"

// config holds the per-call settings of the envelope operations.
type config struct {
	maxDrift   time.Duration
	checkDrift bool
	now        func() time.Time
}

// Option configures an envelope operation.
type Option func(*config)

// WithMaxDrift enables the freshness check on verification: an envelope whose
// signing timestamp is more than d away from the current time, in either
// direction, is rejected with a freshness error. Without this option the
// timestamp is not checked at all. The bound has one second resolution and
// negative values are treated as zero.
func WithMaxDrift(d time.Duration) Option {
	return func(c *config) {
		c.maxDrift = max(d, 0)
		c.checkDrift = true
	}
}

// WithClock sets the time source used to stamp new envelopes and to check
// drift on verification. It defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// unixSeconds returns t as whole seconds since the epoch, clamped at zero.
func unixSeconds(t time.Time) uint64 {
	if s := t.Unix(); s > 0 {
		return uint64(s)
	}
	return 0
}

// fresh reports whether timestamp is within the configured drift of now.
func (c *config) fresh(timestamp uint64) bool {
	if !c.checkDrift {
		return true
	}
	now := unixSeconds(c.now())

	var drift uint64
	if now > timestamp {
		drift = now - timestamp
	} else {
		drift = timestamp - now
	}
	return drift <= uint64(c.maxDrift/time.Second)
}
