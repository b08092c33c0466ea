package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	agentKeyFile = "agent.key"
)

// ErrAgentKeyExists is returned by SaveAgentKey when a key is already stored.
var ErrAgentKeyExists = errors.New("agent key already saved")

// LoadAgentKey returns the hex private key stored in .aona/agent.key.
// Returns "", nil if no key has been saved.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadAgentKey(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(dir, agentKeyFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading agent key: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// SaveAgentKey persists hexKey to .aona/agent.key, readable by the owner only.
// It never replaces a stored key; use ClearAgentKey first to rotate it.
// It returns the path written.
func (m *Manager) SaveAgentKey(hexKey, overrideDir string) (string, error) {
	if strings.TrimSpace(hexKey) == "" {
		return "", errors.New("cannot save empty agent key")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, agentKeyFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return path, ErrAgentKeyExists
		}
		return "", fmt.Errorf("writing agent key: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(hexKey + "\n"); err != nil {
		return "", fmt.Errorf("writing agent key: %w", err)
	}

	return path, nil
}

// ClearAgentKey removes the stored key so the next run generates a new
// identity. Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearAgentKey(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, agentKeyFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing agent key: %w", err)
	}

	return nil
}
