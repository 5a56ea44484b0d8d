package security

import (
	"testing"
	"time"
)

func TestCheckCanStartAllowsWithinBurst(t *testing.T) {
	clock := time.Unix(0, 0)
	p := NewPolicy(1, 2, 1, 2, WithClock(func() time.Time { return clock }))

	for i := 0; i < 2; i++ {
		d := p.CheckCanStart("svc-a", "caller-a")
		if !d.Allowed {
			t.Fatalf("call %d: expected allowed, got denied: %+v", i, d)
		}
	}
}

func TestCheckCanStartDeniesOverBurstAndSuggestsDelay(t *testing.T) {
	clock := time.Unix(0, 0)
	p := NewPolicy(1, 1, 1, 1, WithClock(func() time.Time { return clock }))

	first := p.CheckCanStart("svc-a", "caller-a")
	if !first.Allowed {
		t.Fatalf("expected first call allowed, got %+v", first)
	}
	second := p.CheckCanStart("svc-a", "caller-a")
	if second.Allowed {
		t.Fatal("expected second call denied immediately after exhausting burst")
	}
	if second.DelaySeconds <= 0 {
		t.Errorf("expected positive delay hint, got %v", second.DelaySeconds)
	}
	if second.Reason == "" {
		t.Error("expected a denial reason")
	}
}

func TestCheckCanStartRefillsOverTime(t *testing.T) {
	clock := time.Unix(0, 0)
	p := NewPolicy(1, 1, 10, 10, WithClock(func() time.Time { return clock }))

	if !p.CheckCanStart("svc-a", "caller-a").Allowed {
		t.Fatal("expected first call allowed")
	}
	if p.CheckCanStart("svc-a", "caller-a").Allowed {
		t.Fatal("expected immediate second call denied")
	}

	clock = clock.Add(2 * time.Second)
	if !p.CheckCanStart("svc-a", "caller-a").Allowed {
		t.Fatal("expected call allowed after bucket refills")
	}
}

func TestCheckCanStartBucketsAreIndependentPerService(t *testing.T) {
	clock := time.Unix(0, 0)
	p := NewPolicy(1, 1, 10, 10, WithClock(func() time.Time { return clock }))

	if !p.CheckCanStart("svc-a", "caller-a").Allowed {
		t.Fatal("expected svc-a allowed")
	}
	if !p.CheckCanStart("svc-b", "caller-a").Allowed {
		t.Fatal("expected svc-b unaffected by svc-a's bucket")
	}
}

func TestCheckCanStartCallerBucketAppliesAcrossServices(t *testing.T) {
	clock := time.Unix(0, 0)
	p := NewPolicy(10, 10, 1, 1, WithClock(func() time.Time { return clock }))

	if !p.CheckCanStart("svc-a", "caller-a").Allowed {
		t.Fatal("expected first call allowed")
	}
	d := p.CheckCanStart("svc-b", "caller-a")
	if d.Allowed {
		t.Fatal("expected caller-a's bucket to be shared across distinct service_ids")
	}
}

func TestDefaultPolicyAllowsFirstStart(t *testing.T) {
	p := DefaultPolicy()
	if !p.CheckCanStart("svc-a", "caller-a").Allowed {
		t.Fatal("expected a fresh service/caller pair to be allowed")
	}
}
