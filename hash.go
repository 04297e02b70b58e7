package potlai

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText computes the SHA-256 hash of text. Surrounding whitespace is part
// of a catalog message, so it is hashed as-is.
func HashText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// CacheKey builds the cache key of a translation. The prompt digest keeps
// translations made under a different template or glossary apart.
func CacheKey(hash, targetLang, model, promptDigest string) string {
	return hash + ":" + targetLang + ":" + model + ":" + promptDigest
}
