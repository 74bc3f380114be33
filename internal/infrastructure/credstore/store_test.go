package credstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/registry"
	"github.com/zalando/go-keyring"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

func TestStore_RoundTrip(t *testing.T) {
	keyring.MockInit()
	store := &Store{Registry: "registry.example.com"}

	if err := store.Save("deployer", "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	auth, err := store.RegistryAuth(context.Background())
	if err != nil {
		t.Fatalf("RegistryAuth: %v", err)
	}

	raw, err := base64.URLEncoding.DecodeString(auth)
	if err != nil {
		t.Fatalf("decode auth payload: %v", err)
	}
	var cfg registry.AuthConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("unmarshal auth payload: %v", err)
	}
	if cfg.Username != "deployer" || cfg.Password != "s3cret" {
		t.Errorf("auth = %s/%s, want deployer/s3cret", cfg.Username, cfg.Password)
	}
	if cfg.ServerAddress != "registry.example.com" {
		t.Errorf("ServerAddress = %q", cfg.ServerAddress)
	}
}

func TestStore_MissingCredentials(t *testing.T) {
	keyring.MockInit()
	store := &Store{Registry: "registry.example.com"}

	_, err := store.RegistryAuth(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("RegistryAuth err = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	keyring.MockInit()
	store := &Store{Registry: "registry.example.com"}

	if err := store.Delete(); err != nil {
		t.Errorf("Delete on empty store: %v", err)
	}
}
