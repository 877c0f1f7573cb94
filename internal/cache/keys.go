package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// keyPayload is the canonical form hashed into a cache key. encoding/json
// marshals map keys in sorted order, so two option maps with the same
// entries always serialize identically regardless of insertion order.
type keyPayload struct {
	Text      string                 `json:"text"`
	Operation string                 `json:"operation"`
	Options   map[string]interface{} `json:"options"`
	Question  string                 `json:"question,omitempty"`
}

// cacheKey derives the deterministic key for a request. The key changes
// whenever text, operation, option content, or question differ.
func cacheKey(prefix, text, operation string, options map[string]interface{}, question string) (string, error) {
	if options == nil {
		options = map[string]interface{}{}
	}

	data, err := json.Marshal(keyPayload{
		Text:      text,
		Operation: operation,
		Options:   options,
		Question:  question,
	})
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:]), nil
}
