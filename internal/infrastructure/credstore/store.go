// Package credstore keeps registry credentials in the operating
// system keychain.
package credstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/docker/docker/api/types/registry"
	"github.com/zalando/go-keyring"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

const service = "house-price-rollout"

// Store reads and writes registry credentials for one registry host.
type Store struct {
	Registry string
}

// Save stores the username and password for the registry.
func (s *Store) Save(username, password string) error {
	payload, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := keyring.Set(service, s.Registry, string(payload)); err != nil {
		return fmt.Errorf("store credentials for %s: %w", s.Registry, err)
	}
	return nil
}

// Delete removes the registry's stored credentials.
func (s *Store) Delete() error {
	if err := keyring.Delete(service, s.Registry); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete credentials for %s: %w", s.Registry, err)
	}
	return nil
}

// RegistryAuth returns the base64 auth payload the Docker daemon
// expects for pushes. It returns [domain.ErrNotFound] when no
// credentials are stored.
func (s *Store) RegistryAuth(_ context.Context) (string, error) {
	raw, err := keyring.Get(service, s.Registry)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("credentials for %s: %w", s.Registry, domain.ErrNotFound)
		}
		return "", fmt.Errorf("read credentials for %s: %w", s.Registry, err)
	}
	var creds credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return "", fmt.Errorf("decode credentials for %s: %w", s.Registry, err)
	}

	auth, err := json.Marshal(registry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Password,
		ServerAddress: s.Registry,
	})
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return base64.URLEncoding.EncodeToString(auth), nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
