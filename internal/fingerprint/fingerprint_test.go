package fingerprint

import (
	"testing"

	"github.com/pactown/pactown/internal/markpact"
)

func TestComputeStableAcrossOrderingAndWhitespace(t *testing.T) {
	a := []markpact.DepSpec{{Name: "fastapi", Raw: "fastapi==0.110.0"}, {Name: "uvicorn", Raw: "uvicorn"}}
	b := []markpact.DepSpec{{Name: "uvicorn", Raw: " UVICORN "}, {Name: "fastapi", Raw: "FastAPI==0.110.0"}}

	fa := Compute(markpact.RuntimePython, a, 1)
	fb := Compute(markpact.RuntimePython, b, 1)
	if fa != fb {
		t.Errorf("fingerprints differ: %s vs %s", fa, fb)
	}
}

func TestComputeDiffersByRuntime(t *testing.T) {
	deps := []markpact.DepSpec{{Name: "x", Raw: "x"}}
	fp := Compute(markpact.RuntimePython, deps, 1)
	fn := Compute(markpact.RuntimeNode, deps, 1)
	if fp == fn {
		t.Error("expected different fingerprints for different runtimes")
	}
}

func TestComputeDiffersByCacheVersion(t *testing.T) {
	deps := []markpact.DepSpec{{Name: "x", Raw: "x"}}
	f1 := Compute(markpact.RuntimePython, deps, 1)
	f2 := Compute(markpact.RuntimePython, deps, 2)
	if f1 == f2 {
		t.Error("expected different fingerprints for different cache versions")
	}
}

func TestComputeEmptyDepsReturnsSentinel(t *testing.T) {
	if got := Compute(markpact.RuntimePython, nil, 1); got != EmptySentinel {
		t.Errorf("Compute with no deps = %q, want sentinel", got)
	}
}
