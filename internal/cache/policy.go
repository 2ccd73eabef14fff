package cache

import "time"

// DefaultTTL is the ephemeral entry lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Policy partitions entries and decides when they expire.
type Policy interface {
	// Partition names the key namespace entries of this policy live in.
	Partition() string

	// Fresh reports whether an entry computed at computedAt (Unix ms)
	// is still servable at now.
	Fresh(computedAt, now int64) bool
}

// PinnedPolicy keeps entries forever. Used for completed historical
// windows whose inputs can never change.
type PinnedPolicy struct{}

func (PinnedPolicy) Partition() string { return "perm" }

func (PinnedPolicy) Fresh(_, _ int64) bool { return true }

// TTLPolicy expires entries after a fixed duration. Used for runs over
// live series that still receive samples.
type TTLPolicy struct {
	TTL time.Duration
}

func (TTLPolicy) Partition() string { return "eph" }

func (p TTLPolicy) Fresh(computedAt, now int64) bool {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now-computedAt < ttl.Milliseconds()
}

var (
	_ Policy = PinnedPolicy{}
	_ Policy = TTLPolicy{}
)
