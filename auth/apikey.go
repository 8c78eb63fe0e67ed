package auth

import (
	"os"
	"strings"
)

// Keys under which provider API keys live in a SecretStore.
const (
	GeminiKey = "gemini-api-key"
	OpenAIKey = "openai-api-key"
)

// EnvVar maps a stored key name to the environment variable that overrides it.
func EnvVar(key string) string {
	switch key {
	case GeminiKey:
		return "GEMINI_API_KEY"
	case OpenAIKey:
		return "OPENAI_API_KEY"
	}
	return ""
}

// LookupAPIKey prefers the environment and falls back to the store.
// It returns "" when the key is configured nowhere.
func LookupAPIKey(store SecretStore, key string) string {
	if env := EnvVar(key); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	if store == nil {
		return ""
	}
	v, err := store.Get(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}
