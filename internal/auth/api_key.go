package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/invoicekit/invoicekit/internal/config"
)

// HashAPIKey creates a SHA-256 hash of the API key
func HashAPIKey(key string) string {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	return hex.EncodeToString(hasher.Sum(nil))
}

// GenerateAPIKey generates a new API key
// The key is returned in its raw form, it should be hashed before storing in config
func GenerateAPIKey() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return "sk_" + hex.EncodeToString(key)
}

// ValidateAPIKey returns the user id configured for the key
func ValidateAPIKey(cfg *config.Configuration, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	userID, exists := cfg.Auth.APIKey.Keys[HashAPIKey(key)]
	if !exists || userID == "" {
		return "", false
	}
	return userID, true
}

// ValidateInternalKey reports whether key is one of the configured internal keys.
// Internal keys are not bound to a user.
func ValidateInternalKey(cfg *config.Configuration, key string) bool {
	if key == "" {
		return false
	}
	hashed := []byte(HashAPIKey(key))
	for _, allowed := range cfg.Auth.Internal.Keys {
		if subtle.ConstantTimeCompare(hashed, []byte(allowed)) == 1 {
			return true
		}
	}
	return false
}
