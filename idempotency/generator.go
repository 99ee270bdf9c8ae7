// Package idempotency derives deterministic call fingerprints and manages
// the cache of previously produced results. A key is a pure function of the
// spec identity, the selected argument fields, and optionally the caller
// identity: identical inputs always yield an identical key.
package idempotency

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"strings"

	"github.com/toolweave-ai/sdk/tool"
)

// ErrMissingKeyField reports that a configured key field was absent from the
// arguments. The executor treats it as a bypass signal when the spec sets
// bypass_on_missing_key, and as a hard failure otherwise.
type ErrMissingKeyField struct {
	Field string
}

func (e *ErrMissingKeyField) Error() string {
	return fmt.Sprintf("idempotency: key field %q missing from arguments", e.Field)
}

// Generator derives the idempotency key for one call. Implementations must
// be deterministic and use a collision-resistant digest.
type Generator interface {
	Key(args map[string]any, tc *tool.Context, spec *tool.Spec) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface, for custom
// business rules such as time-bucketed keys.
type GeneratorFunc func(args map[string]any, tc *tool.Context, spec *tool.Spec) (string, error)

// Key calls the wrapped function.
func (f GeneratorFunc) Key(args map[string]any, tc *tool.Context, spec *tool.Spec) (string, error) {
	return f(args, tc, spec)
}

const separator = "|"

// canonical serializes the selected argument fields with deterministic key
// ordering. encoding/json sorts map keys, which gives the stable ordering
// the key derivation depends on.
func canonical(args map[string]any) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("idempotency: canonicalize arguments: %w", err)
	}
	return string(data), nil
}

// selectFields returns the subset of args named by fields, or args itself
// when fields is empty. A named field absent from args yields
// ErrMissingKeyField.
func selectFields(args map[string]any, fields []string) (map[string]any, error) {
	if len(fields) == 0 {
		return args, nil
	}
	selected := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := args[f]
		if !ok {
			return nil, &ErrMissingKeyField{Field: f}
		}
		selected[f] = v
	}
	return selected, nil
}

// Default hashes the maximal fingerprint: spec id and version, caller
// identity, and all arguments (or the configured key fields).
type Default struct{}

// Key implements Generator.
func (Default) Key(args map[string]any, tc *tool.Context, spec *tool.Spec) (string, error) {
	selected, err := selectFields(args, spec.Idempotency.KeyFields)
	if err != nil {
		return "", err
	}
	payload, err := canonical(selected)
	if err != nil {
		return "", err
	}

	components := []string{
		spec.ID,
		spec.Version,
		tc.UserID,
		tc.SessionID,
		payload,
	}
	sum := sha256.Sum256([]byte(strings.Join(components, separator)))
	return hex.EncodeToString(sum[:]), nil
}

// FieldBased hashes only the configured key fields plus the spec identity,
// ignoring caller identity and all other arguments. Used when a subset of
// fields defines "the same request", such as a transaction id.
type FieldBased struct{}

// Key implements Generator.
func (FieldBased) Key(args map[string]any, tc *tool.Context, spec *tool.Spec) (string, error) {
	selected, err := selectFields(args, spec.Idempotency.KeyFields)
	if err != nil {
		return "", err
	}
	payload, err := canonical(selected)
	if err != nil {
		return "", err
	}

	components := []string{spec.ID, spec.Version, payload}
	sum := sha256.Sum256([]byte(strings.Join(components, separator)))
	return hex.EncodeToString(sum[:]), nil
}

// HashBased is the configurable variant of Default: the digest algorithm and
// the inclusion of user and session identity are driven by the spec's
// idempotency configuration.
type HashBased struct{}

// Key implements Generator.
func (HashBased) Key(args map[string]any, tc *tool.Context, spec *tool.Spec) (string, error) {
	cfg := spec.Idempotency

	selected, err := selectFields(args, cfg.KeyFields)
	if err != nil {
		return "", err
	}
	payload, err := canonical(selected)
	if err != nil {
		return "", err
	}

	components := []string{spec.ID, spec.Version}
	if cfg.IncludeUser == nil || *cfg.IncludeUser {
		components = append(components, tc.UserID)
	}
	if cfg.IncludeSession == nil || *cfg.IncludeSession {
		components = append(components, tc.SessionID)
	}
	components = append(components, payload)

	var h hash.Hash
	switch cfg.HashAlgorithm {
	case "", "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	default:
		return "", fmt.Errorf("idempotency: unsupported hash algorithm %q", cfg.HashAlgorithm)
	}
	h.Write([]byte(strings.Join(components, separator)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FromConfig selects the generator implied by an idempotency configuration.
func FromConfig(cfg tool.IdempotencyConfig) Generator {
	switch cfg.Strategy {
	case tool.KeyFields:
		return FieldBased{}
	case tool.KeyHash:
		return HashBased{}
	default:
		return Default{}
	}
}
