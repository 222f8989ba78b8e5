package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	appName   = "localzpush"
	stateFile = "state.yaml"

	formatVersion = 1
)

// document is the on-disk layout of a FileStore
type document struct {
	Version int               `yaml:"version"`
	Values  map[string]string `yaml:"values"`
}

// FileStore persists values as a YAML document. Every committed transaction
// rewrites the file via a temporary file and rename so a crash never leaves a
// half-written document behind.
type FileStore struct {
	*kv
	path string
}

// GetStateDir returns the OS-appropriate directory for SDK state:
//   - Linux: $XDG_CONFIG_HOME/localzpush or $HOME/.config/localzpush
//   - macOS: $HOME/.config/localzpush
//   - Windows: %LOCALAPPDATA%\localzpush
func GetStateDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// DefaultPath returns the default state file location
func DefaultPath() (string, error) {
	dir, err := GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFile), nil
}

// OpenFileStore loads the store at path. A missing file yields an empty store;
// the file is created on the first committed transaction.
func OpenFileStore(path string) (*FileStore, error) {
	values, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	fs := &FileStore{path: path}
	fs.kv = newKV(values, fs.write)
	return fs, nil
}

// Path returns the file backing the store
func (fs *FileStore) Path() string {
	return fs.path
}

func readDocument(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	if doc.Version != formatVersion {
		return nil, fmt.Errorf("unsupported state file version: %d (expected %d)", doc.Version, formatVersion)
	}

	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}
	return doc.Values, nil
}

func (fs *FileStore) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(&document{Version: formatVersion, Values: values})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	header := []byte("# LocalzPush SDK state. Managed by the SDK; do not edit.\n\n")
	data = append(header, data...)

	tmpPath := fs.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}

	if err := os.Rename(tmpPath, fs.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save state file: %w", err)
	}

	return nil
}
