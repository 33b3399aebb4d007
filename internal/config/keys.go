package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// APIKey is one client credential pair for the parts-search API.
// Keys are assigned round-robin across search workers.
type APIKey struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type keyFile struct {
	APIKeys []APIKey `json:"api_keys"`
}

// LoadAPIKeys reads the credential store. The file holds
// {"api_keys": [{"client_id": ..., "client_secret": ...}, ...]}.
func LoadAPIKeys(path string) ([]APIKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api keys: %w", err)
	}

	var f keyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse api keys: %w", err)
	}

	if len(f.APIKeys) == 0 {
		return nil, fmt.Errorf("no api keys configured in %s", path)
	}
	for i, k := range f.APIKeys {
		if k.ClientID == "" || k.ClientSecret == "" {
			return nil, fmt.Errorf("api key %d is missing client_id or client_secret", i)
		}
	}
	return f.APIKeys, nil
}
