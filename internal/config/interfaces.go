package config

import "context"

// SecretProvider resolves secret values by reference. SSMProvider backs it in
// deployed environments and EnvVarProvider locally.
type SecretProvider interface {
	// GetParametersBatch resolves the given parameter paths and returns a map
	// of path -> plaintext value. Paths that do not exist are omitted or
	// reported as an error, at the implementation's discretion.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
