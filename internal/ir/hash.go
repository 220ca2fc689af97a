package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. Version suffix enables
// future algorithm migration.
const (
	DomainInjection = "vex/injection/v1"
	DomainMarker    = "vex/marker/v1"
	DomainPlayback  = "vex/playback/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InjectionPointID computes the content-addressed identifier of an
// injection point. Stable across rebuilds: identical (harness, ordinal,
// type) always yields the same ID, which is what lets counterexamples
// recorded in one run be replayed against a rebuilt unit.
func InjectionPointID(harness string, ordinal int, typ Type) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"harness": harness,
		"ordinal": int64(ordinal),
		"type":    typ,
	})
	if err != nil {
		return "", fmt.Errorf("InjectionPointID: %w", err)
	}
	return hashWithDomain(DomainInjection, canonical), nil
}

// MarkerID computes the content-addressed identifier of a coverage
// marker from its harness, region, and occurrence index within that
// region (inlining may duplicate a region).
func MarkerID(harness, region string, occurrence int) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"harness":    harness,
		"region":     region,
		"occurrence": int64(occurrence),
	})
	if err != nil {
		return "", fmt.Errorf("MarkerID: %w", err)
	}
	return hashWithDomain(DomainMarker, canonical), nil
}

// PlaybackHash computes the short value-sensitive hash that suffixes a
// playback test name. Two playback tests get the same name exactly when
// they replay the same harness with the same values.
func PlaybackHash(harness string, assignments []Assignment) (string, error) {
	vals := make([]any, len(assignments))
	for i, a := range assignments {
		vals[i] = map[string]any{
			"injection": a.Injection,
			"value":     a.Value,
		}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"harness": harness,
		"values":  vals,
	})
	if err != nil {
		return "", fmt.Errorf("PlaybackHash: %w", err)
	}
	return hashWithDomain(DomainPlayback, canonical)[:16], nil
}
