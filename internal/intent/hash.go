package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainMutation is the domain prefix for content-addressed mutation ids.
// Version suffix enables future algorithm migration.
const DomainMutation = "loom/mutation/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MutationID computes the content-addressed id for a structural mutation.
// Stable across restarts and replays given the same inputs, so durable
// log appends stay idempotent when a restore replay or a peer re-delivery
// revisits the same mutation.
//
// The apply sequence is part of the identity: the same operation applied
// twice at different points in the log is two mutations.
func MutationID(in Intent, source Source, applySeq uint64) (string, error) {
	payload := Payload{
		"kind":   in.Kind.String(),
		"node":   string(in.Node),
		"source": source.String(),
		"seq":    applySeq,
		"name":   in.Name,
		"url":    in.URL,
		"tag":    in.Tag,
		"entry":  in.Entry,
		"from":   string(in.From),
		"to":     string(in.To),
		"edge":   in.EdgeType.String(),
		"plugin": in.Plugin,
		"reason": in.Reason,
	}
	if in.Remote != nil {
		payload["peer"] = in.Remote.Peer
		payload["clock"] = in.Remote.Clock
	}

	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("MutationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMutation, canonical), nil
}

// MustMutationID is like MutationID but panics on error.
// Use only in tests with known-valid inputs.
func MustMutationID(in Intent, source Source, applySeq uint64) string {
	id, err := MutationID(in, source, applySeq)
	if err != nil {
		panic(err)
	}
	return id
}
