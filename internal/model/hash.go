package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainRecord is the domain prefix for record fingerprints.
// The version suffix leaves room for a future encoding change.
const DomainRecord = "mco2/record/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a content hash of r's canonical encoding.
// Two copies of a record are identical iff their fingerprints match.
func Fingerprint(r Record) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests.
func MustFingerprint(r Record) string {
	fp, err := Fingerprint(r)
	if err != nil {
		panic(err)
	}
	return fp
}
