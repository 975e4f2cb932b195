// Package oci pulls adapter plugin bundles from OCI registries.
package oci

import (
	"context"
	"os"
)

// AuthProvider supplies registry credentials.
type AuthProvider interface {
	Credentials(ctx context.Context, registry string) (username, password string, err error)
}

// EnvAuthProvider retrieves credentials from environment variables.
type EnvAuthProvider struct{}

// NewEnvAuthProvider creates a new environment-based auth provider.
func NewEnvAuthProvider() *EnvAuthProvider {
	return &EnvAuthProvider{}
}

// Credentials returns username and password for a registry.
func (p *EnvAuthProvider) Credentials(ctx context.Context, registry string) (username, password string, err error) {
	username = os.Getenv("IMAGING_REGISTRY_USERNAME")
	password = os.Getenv("IMAGING_REGISTRY_PASSWORD")
	return username, password, nil
}
