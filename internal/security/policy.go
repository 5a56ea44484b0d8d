// Package security implements the pluggable gate in front of service
// starts: check_can_start_service from spec §4.9, as a token-bucket rate
// limiter keyed per service_id and per caller.
package security

import (
	"sync"
	"time"
)

// Decision is the result of a CheckCanStart call.
type Decision struct {
	Allowed      bool
	Reason       string
	DelaySeconds float64
}

// bucket is a classic token bucket: it refills at Rate tokens/sec, caps at
// Burst tokens, and every CheckCanStart call spends exactly one token.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	rate       float64
	burst      float64
}

func newBucket(rate, burst float64, now time.Time) *bucket {
	return &bucket{tokens: burst, lastRefill: now, rate: rate, burst: burst}
}

// take spends one token if available, returning (true, 0) on success or
// (false, waitSeconds) with the time until a token will next be available.
func (b *bucket) take(now time.Time) (bool, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	deficit := 1 - b.tokens
	return false, deficit / b.rate
}

// Policy is the default Security Policy: independent token buckets per
// service_id and per caller. A start is allowed only when both buckets have
// a token to spend; spec §4.9 does not rank the two, so the tighter of the
// two denials' delay hints is surfaced.
type Policy struct {
	mu             sync.Mutex
	serviceBuckets map[string]*bucket
	callerBuckets  map[string]*bucket
	serviceRate    float64
	serviceBurst   float64
	callerRate     float64
	callerBurst    float64
	now            func() time.Time
}

// Option configures a Policy at construction time.
type Option func(*Policy)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// NewPolicy builds a Policy. serviceRate/serviceBurst bound how often a
// given service_id may be (re)started; callerRate/callerBurst bound how
// often a single caller may start anything.
func NewPolicy(serviceRate, serviceBurst, callerRate, callerBurst float64, opts ...Option) *Policy {
	p := &Policy{
		serviceBuckets: make(map[string]*bucket),
		callerBuckets:  make(map[string]*bucket),
		serviceRate:    serviceRate,
		serviceBurst:   serviceBurst,
		callerRate:     callerRate,
		callerBurst:    callerBurst,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultPolicy returns a Policy with conservative defaults: 1 start every 2
// seconds per service_id (burst of 3), and 1 start per second per caller
// (burst of 5).
func DefaultPolicy() *Policy {
	return NewPolicy(0.5, 3, 1, 5)
}

// CheckCanStart answers whether serviceID may be (re)started by caller right
// now. An empty caller is treated as "anonymous" and still metered, since
// an anonymous caller is still a caller.
func (p *Policy) CheckCanStart(serviceID, caller string) Decision {
	now := p.now()

	svcOK, svcDelay := p.bucketFor(&p.serviceBuckets, serviceID, p.serviceRate, p.serviceBurst, now)
	callerOK, callerDelay := p.bucketFor(&p.callerBuckets, caller, p.callerRate, p.callerBurst, now)

	if svcOK && callerOK {
		return Decision{Allowed: true}
	}

	delay := svcDelay
	reason := "service start rate limit exceeded"
	if !callerOK && (svcOK || callerDelay > svcDelay) {
		delay = callerDelay
		reason = "caller start rate limit exceeded"
	}
	return Decision{Allowed: false, Reason: reason, DelaySeconds: delay}
}

func (p *Policy) bucketFor(buckets *map[string]*bucket, key string, rate, burst float64, now time.Time) (bool, float64) {
	p.mu.Lock()
	b, ok := (*buckets)[key]
	if !ok {
		b = newBucket(rate, burst, now)
		(*buckets)[key] = b
	}
	p.mu.Unlock()
	return b.take(now)
}
