package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "patchnote"

	// KeyringGitHubTokenItem is the key for the GitHub token
	KeyringGitHubTokenItem = "github-token"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// GetGitHubToken retrieves GitHub token from OS keychain
func (km *KeyringManager) GetGitHubToken() (string, error) {
	token, err := keyring.Get(KeyringService, KeyringGitHubTokenItem)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get GitHub token from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("github token retrieved from keychain")
	return token, nil
}

// SetGitHubToken stores GitHub token securely in OS keychain
func (km *KeyringManager) SetGitHubToken(token string) error {
	if token == "" {
		return fmt.Errorf("github token cannot be empty")
	}

	err := keyring.Set(KeyringService, KeyringGitHubTokenItem, token)
	if err != nil {
		km.logger.Error("failed to save GitHub token to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("github token saved to keychain", "service", KeyringService)
	return nil
}

// DeleteGitHubToken removes GitHub token from OS keychain
func (km *KeyringManager) DeleteGitHubToken() error {
	err := keyring.Delete(KeyringService, KeyringGitHubTokenItem)
	if err == keyring.ErrNotFound {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete GitHub token from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("github token deleted from keychain")
	return nil
}

// IsAvailable checks if OS keychain is available
// Returns false on headless systems (CI/CD) where keychain isn't available
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")

	// "not found" means the keychain answered
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}

	return true
}

// TokenSource reports where the effective GitHub token comes from:
// "env", "keychain", "config" or "none"
func (km *KeyringManager) TokenSource(cfg *Config) string {
	if os.Getenv("GITHUB_TOKEN") != "" {
		return "env"
	}
	if km.IsAvailable() {
		if token, _ := km.GetGitHubToken(); token != "" && token == cfg.GitHub.Token {
			return "keychain"
		}
	}
	if cfg.GitHub.Token != "" {
		return "config"
	}
	return "none"
}

// MaskToken masks a token for display: "ghp_abc...wxyz"
func MaskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", token[:7], token[len(token)-4:])
}
