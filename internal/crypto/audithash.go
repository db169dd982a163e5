package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AuditHash returns a SHA-256 hex digest of the structured record,
// canonicalized so that the same logical record always yields the same
// digest regardless of field order. Used for tamper evidence of audit
// trails.
func AuditHash(data map[string]any) (string, error) {
	var sb strings.Builder
	if err := writeCanonical(&sb, data); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:]), nil
}

// writeCanonical writes a JSON-like canonical form with recursively
// sorted object keys.
func writeCanonical(sb *strings.Builder, value any) error {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return err
			}
			sb.Write(keyJSON)
			sb.WriteByte(':')
			if err := writeCanonical(sb, v[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
		return nil

	case []any:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeCanonical(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
		return nil

	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to canonicalize value: %w", err)
		}
		sb.Write(encoded)
		return nil
	}
}
