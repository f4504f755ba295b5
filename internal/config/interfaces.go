package config

import (
	"context"
	"os"
)

// SecretProvider resolves secret parameter paths to plaintext values.
// Production uses SSMProvider; local development uses EnvVarProvider.
type SecretProvider interface {
	// GetParametersBatch returns a map of key to value for every key it could
	// resolve. Keys it cannot find are omitted rather than reported as errors,
	// unless the backing store treats them as invalid.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// ProviderFromEnv picks the SecretProvider named by SECRET_SOURCE: "env"
// resolves pointers against other environment variables, anything else
// uses SSM in AWS_REGION.
func ProviderFromEnv() SecretProvider {
	if os.Getenv("SECRET_SOURCE") == "env" {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(os.Getenv("AWS_REGION"))
}
