package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainProject = "blockc/project/v1"
	DomainTarget  = "blockc/target/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProjectHash fingerprints a whole project. Two builds of the same sources
// with the same id generator produce the same hash.
func ProjectHash(p *Project) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("ProjectHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProject, canonical), nil
}

// TargetHash fingerprints a single target.
func TargetHash(t *Target) (string, error) {
	canonical, err := MarshalCanonical(t)
	if err != nil {
		return "", fmt.Errorf("TargetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTarget, canonical), nil
}
