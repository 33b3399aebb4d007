package manufacturer

import (
	"encoding/json"
	"fmt"
	"os"
)

type directoryFile struct {
	Manufacturers map[string]int      `json:"manufacturers"`
	Aliases       map[string][]string `json:"aliases"`
}

// LoadResolver reads a manufacturer directory file and builds a Resolver.
// An empty path returns a resolver with no directory, which resolves
// nothing but never fails.
func LoadResolver(path string) (*Resolver, error) {
	if path == "" {
		return NewResolver(nil, nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manufacturer directory: %w", err)
	}

	var f directoryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse manufacturer directory: %w", err)
	}

	return NewResolver(f.Manufacturers, f.Aliases), nil
}
