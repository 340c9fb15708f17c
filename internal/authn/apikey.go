package authn

import (
	"golang.org/x/crypto/bcrypt"

	"provisor/internal/platform/config"
	dErrors "provisor/pkg/domain-errors"
)

// APIKeyChecker validates X-API-Key credentials against the configured
// bcrypt hashes. Only hashes live in config; the raw key exists nowhere on
// the server side.
type APIKeyChecker struct {
	clients []config.APIClientConfig
}

func NewAPIKeyChecker(clients []config.APIClientConfig) *APIKeyChecker {
	return &APIKeyChecker{clients: clients}
}

// ValidateAPIKey implements middleware.APIKeyValidator. Every configured
// hash is compared, so the client list is expected to stay short (bcrypt is
// deliberately slow).
func (c *APIKeyChecker) ValidateAPIKey(key string) (string, error) {
	for _, client := range c.clients {
		if bcrypt.CompareHashAndPassword([]byte(client.KeyHash), []byte(key)) == nil {
			return client.Name, nil
		}
	}
	return "", dErrors.New(dErrors.CodeUnauthorized, "unknown api key")
}

// HashAPIKey produces the bcrypt hash stored in configuration when a new
// service credential is issued.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
