// Package trigger implements the flush-trigger clock (C5): it decides
// how long the event loop may wait before the hard period forces a
// flush, and evaluates the four send triggers against the current
// bundle state.
package trigger

import "time"

// Reason identifies which trigger(s) caused should_flush to report true.
type Reason string

const (
	ReasonNumPacketLimit Reason = "numpacket_limit"
	ReasonSizeLimit      Reason = "size_limit"
	ReasonTimeout        Reason = "timeout"
	ReasonPeriod         Reason = "period"
	ReasonMTU            Reason = "MTU"
)

// Config holds the immutable trigger configuration.
type Config struct {
	LimitPackets  int
	SizeThreshold int
	Timeout       time.Duration
	Period        time.Duration
}

// Normalize applies the §3 defaulting rule in place, given whether each of
// size/timeout/period was explicitly tightened from its sentinel.
func (c *Config) Normalize(sizeSet, timeoutSet, periodSet bool) {
	if c.LimitPackets == 0 {
		if sizeSet || timeoutSet || periodSet {
			c.LimitPackets = 100
		} else {
			c.LimitPackets = 1
		}
	}
}

// Clock tracks the moment of the most recent flush and computes the
// remaining time until the hard period trigger fires.
type Clock struct {
	cfg        Config
	lastSentAt time.Time
	now        func() time.Time
}

// New creates a Clock with lastSentAt initialized to now.
func New(cfg Config) *Clock {
	return &Clock{cfg: cfg, lastSentAt: time.Now(), now: time.Now}
}

// NewWithClock is New but lets tests inject a deterministic time source.
func NewWithClock(cfg Config, now func() time.Time) *Clock {
	return &Clock{cfg: cfg, lastSentAt: now(), now: now}
}

// LastSentAt returns the timestamp of the most recent flush (or tick).
func (c *Clock) LastSentAt() time.Time { return c.lastSentAt }

// MarkSent records now as the moment of the most recent flush/tick.
func (c *Clock) MarkSent() { c.lastSentAt = c.now() }

// TimeUntilPeriod returns max(0, period-(now-lastSentAt)).
func (c *Clock) TimeUntilPeriod() time.Duration {
	elapsed := c.now().Sub(c.lastSentAt)
	remaining := c.cfg.Period - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// State is the minimal bundle-buffer view ShouldFlush needs.
type State struct {
	Count int
	Size  int
}

// ShouldFlush evaluates the three arrival-time triggers in the tie-break
// order numpacket_limit, size_limit, timeout. Multiple reasons may apply
// at once; all matching reasons are returned.
func (c *Clock) ShouldFlush(st State) (bool, []Reason) {
	var reasons []Reason
	if st.Count >= c.cfg.LimitPackets {
		reasons = append(reasons, ReasonNumPacketLimit)
	}
	if st.Size > c.cfg.SizeThreshold {
		reasons = append(reasons, ReasonSizeLimit)
	}
	if c.now().Sub(c.lastSentAt) > c.cfg.Timeout {
		reasons = append(reasons, ReasonTimeout)
	}
	return len(reasons) > 0, reasons
}
