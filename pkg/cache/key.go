package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// KeyGenerator builds deterministic cache keys from request parameters.
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator creates a key generator. An empty prefix defaults to "bb_".
func NewKeyGenerator(prefix string) *KeyGenerator {
	if prefix == "" {
		prefix = "bb_"
	}
	return &KeyGenerator{prefix: prefix}
}

// GenerateKey hashes an operation name plus its parameters into a stable
// key. Map iteration order is normalized by sorting parameter names.
func (g *KeyGenerator) GenerateKey(operation string, params map[string]interface{}) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(operation)
	for _, name := range names {
		value, err := json.Marshal(params[name])
		if err != nil {
			value = []byte(fmt.Sprintf("%v", params[name]))
		}
		fmt.Fprintf(&b, "|%s=%s", name, value)
	}

	h := sha256.Sum256([]byte(b.String()))
	hash := hex.EncodeToString(h[:])

	// Truncated hash keeps keys readable in logs
	return fmt.Sprintf("%s%s_%s", g.prefix, operation, hash[:16])
}
