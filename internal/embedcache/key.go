package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key derives the 64-hex cache key for a text under a given model. The key is
// a pure function of the normalized text plus model id/version, so bumping
// the model invalidates every entry without touching stored keys.
func Key(modelName, modelVersion, text string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	sum := sha256.Sum256([]byte(normalizeText(text) + "\x00" + modelName + "\x00" + strings.TrimSpace(modelVersion)))
	return hex.EncodeToString(sum[:])
}

func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
