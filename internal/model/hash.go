package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainKeyspace separates keyspace digests from any other sha256 use.
const DomainKeyspace = "idemproxy/keyspace/v1"

// HashWithDomain computes SHA256(domain + 0x00 + data).
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// KeyspaceDigest hashes the canonical JSON of a keyspace snapshot
// (key -> field -> value). Two stores with equal bookkeeping have equal digests.
func KeyspaceDigest(snapshot map[string]map[string]string) (string, error) {
	obj := make(map[string]any, len(snapshot))
	for k, fields := range snapshot {
		obj[k] = fields
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return HashWithDomain(DomainKeyspace, data), nil
}
