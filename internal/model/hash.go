package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for cache key hashing.
// Version suffix allows the key format to change without collisions.
const (
	DomainListQuery = "admincache/list/v1"
	DomainRequest   = "admincache/request/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ListQuerySignature identifies a cacheable list request.
type ListQuerySignature struct {
	Resource string     `json:"resource"`
	Params   ListParams `json:"params"`
}

// Key returns a stable key for the signature. Structurally equal signatures
// produce the same key regardless of filter key order.
func (s ListQuerySignature) Key() (string, error) {
	data, err := MarshalCanonical(map[string]any{
		"resource": s.Resource,
		"page":     s.Params.Pagination.Page,
		"perPage":  s.Params.Pagination.PerPage,
		"field":    s.Params.Sort.Field,
		"order":    s.Params.Sort.Order,
		"filter":   map[string]any(s.Params.Filter.Clone()),
	})
	if err != nil {
		return "", fmt.Errorf("list signature key: %w", err)
	}
	return hashWithDomain(DomainListQuery, data), nil
}

// Equal reports structural equality of two signatures.
func (s ListQuerySignature) Equal(other ListQuerySignature) bool {
	a, errA := s.Key()
	b, errB := other.Key()
	return errA == nil && errB == nil && a == b
}

// RequestKey returns a stable key for a provider call, used to share
// identical in-flight reads.
func RequestKey(verb Verb, resource string, params Params) (string, error) {
	data, err := MarshalCanonical(map[string]any{
		"verb":     string(verb.ProviderVerb()),
		"resource": resource,
		"page":     params.Pagination.Page,
		"perPage":  params.Pagination.PerPage,
		"field":    params.Sort.Field,
		"order":    params.Sort.Order,
		"filter":   map[string]any(params.Filter.Clone()),
		"id":       params.ID,
		"ids":      params.IDs,
		"target":   params.Target,
	})
	if err != nil {
		return "", fmt.Errorf("request key: %w", err)
	}
	return hashWithDomain(DomainRequest, data), nil
}
