package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the algorithm to change without collisions.
const (
	DomainPlan      = "vfpquery/plan/v1"
	DomainStatement = "vfpquery/statement/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanFingerprint hashes the canonical description of a logical plan.
// Two plans with the same stages, expressions and parameter slots share a
// fingerprint regardless of which arena or process produced them.
func PlanFingerprint(description IRValue) (string, error) {
	canonical, err := MarshalCanonical(description)
	if err != nil {
		return "", fmt.Errorf("PlanFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

// StatementFingerprint hashes rendered statement text for a dialect.
func StatementFingerprint(dialect, text string) string {
	return hashWithDomain(DomainStatement, []byte(dialect+"\x00"+text))
}
