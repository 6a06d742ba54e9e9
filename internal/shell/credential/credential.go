// Package credential resolves the signing key used for deployments and the
// deployer identity derived from it.
package credential

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artpar/chainforge/internal/core/crypto"
	"github.com/zalando/go-keyring"
)

var (
	// ErrNoCredential is returned when no source yields a signing key.
	ErrNoCredential = errors.New("no signing credential configured")

	// ErrPassphraseRequired is returned when a sealed key is configured
	// without a passphrase.
	ErrPassphraseRequired = errors.New("sealed key requires a passphrase")
)

// Source names where a credential came from.
type Source string

const (
	SourceConfig  Source = "config"
	SourceSealed  Source = "sealed"
	SourceKeyring Source = "keyring"
)

// Config lists the credential sources, tried in field order.
type Config struct {
	PrivateKey string `mapstructure:"private_key"`
	SealedKey  string `mapstructure:"sealed_key"`
	Passphrase string `mapstructure:"passphrase"`

	KeyringService string `mapstructure:"keyring_service"`
	KeyringUser    string `mapstructure:"keyring_user"`
}

// DefaultKeyringService is the keyring service used when none is set.
const DefaultKeyringService = "chainforge"

// Credential is a resolved signing key.
type Credential struct {
	PrivateKey string
	Address    string
	Source     Source
}

// String never prints the key.
func (c Credential) String() string {
	return fmt.Sprintf("%s (%s)", c.Address, c.Source)
}

// Resolve returns the first credential found. A source that is configured
// but broken is an error; it does not fall through to the next source.
func Resolve(cfg Config, logger *slog.Logger) (Credential, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "credential")

	key, src, err := lookup(cfg)
	if err != nil {
		return Credential{}, err
	}

	addr, err := crypto.AddressOf(key)
	if err != nil {
		return Credential{}, fmt.Errorf("%s credential: %w", src, err)
	}

	logger.Info("signing credential resolved", "source", src, "deployer", addr)
	return Credential{PrivateKey: key, Address: addr, Source: src}, nil
}

func lookup(cfg Config) (string, Source, error) {
	if k := strings.TrimSpace(cfg.PrivateKey); k != "" {
		return k, SourceConfig, nil
	}

	if sealed := strings.TrimSpace(cfg.SealedKey); sealed != "" {
		if cfg.Passphrase == "" {
			return "", "", ErrPassphraseRequired
		}
		raw, err := crypto.Open(sealed, cfg.Passphrase)
		if err != nil {
			return "", "", fmt.Errorf("open sealed key: %w", err)
		}
		return strings.TrimSpace(string(raw)), SourceSealed, nil
	}

	if cfg.KeyringUser != "" {
		service := cfg.KeyringService
		if service == "" {
			service = DefaultKeyringService
		}
		k, err := keyring.Get(service, cfg.KeyringUser)
		if errors.Is(err, keyring.ErrNotFound) {
			return "", "", fmt.Errorf("%w: keyring entry %s/%s not found", ErrNoCredential, service, cfg.KeyringUser)
		}
		if err != nil {
			return "", "", fmt.Errorf("read keyring: %w", err)
		}
		return strings.TrimSpace(k), SourceKeyring, nil
	}

	return "", "", ErrNoCredential
}

// Store saves a key in the OS keyring after checking that it parses.
func Store(service, user, privateKey string) (string, error) {
	addr, err := crypto.AddressOf(privateKey)
	if err != nil {
		return "", err
	}
	if service == "" {
		service = DefaultKeyringService
	}
	if err := keyring.Set(service, user, privateKey); err != nil {
		return "", fmt.Errorf("write keyring: %w", err)
	}
	return addr, nil
}
