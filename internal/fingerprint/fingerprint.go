// Package fingerprint computes the deterministic DependencyFingerprint
// described in spec §3: a stable hash over the sorted, normalized set of
// dependency specifiers for a service, scoped by runtime kind and cache
// format version so unrelated caches never collide.
package fingerprint

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/pactown/pactown/internal/markpact"
)

// Fingerprint is the hex-encoded BLAKE2b-256 digest identifying a
// (runtime, dependency set, cache version) triple. Two dep sets with
// identical content — regardless of input ordering or whitespace — must
// produce identical fingerprints, per spec §3.
type Fingerprint string

// EmptySentinel is the fingerprint of a service with no dependencies at
// all, used so the cache has a stable key for "nothing to install" instead
// of hashing an empty byte slice per call site.
const EmptySentinel Fingerprint = "empty"

// Compute hashes the normalized, sorted set of dep specifiers for runtime at
// the given cacheVersion. Specifiers are case-folded and whitespace-trimmed
// before sorting so "Flask==2.0" and "flask==2.0 " hash identically.
func Compute(runtime markpact.RuntimeKind, deps []markpact.DepSpec, cacheVersion int) Fingerprint {
	if len(deps) == 0 {
		return EmptySentinel
	}

	normalized := make([]string, 0, len(deps))
	for _, d := range deps {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(d.Raw)))
	}
	sort.Strings(normalized)

	h, _ := blake2b.New256(nil) // nil key never errors per blake2b.New256's contract
	h.Write([]byte(runtime))
	h.Write([]byte{0})
	for _, spec := range normalized {
		h.Write([]byte(spec))
		h.Write([]byte{0})
	}
	h.Write([]byte{byte(cacheVersion)})

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
