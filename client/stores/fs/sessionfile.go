// Package fs keeps quickauth client sessions in a JSON file.
package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/panyam/quickauth/client"
)

const fileVersion = 1

// SessionFile is a client.CredentialStore backed by one JSON file holding a
// session per server. Changes stay in memory until Save.
type SessionFile struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]*client.ServerCredential
	dirty    bool
}

type sessionFileData struct {
	Version  int                                 `json:"version"`
	Sessions map[string]*client.ServerCredential `json:"sessions"`
}

// DefaultPath is <user config dir>/<appName>/sessions.json. An empty
// appName means "quickauth".
func DefaultPath(appName string) (string, error) {
	if appName == "" {
		appName = "quickauth"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("could not determine config directory: %w", errors.Join(err, herr))
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName, "sessions.json"), nil
}

// OpenSessionFile loads the sessions at path, or DefaultPath("") when path
// is empty. A missing file is an empty store. Sessions that have already
// expired are dropped on load.
func OpenSessionFile(path string) (*SessionFile, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(""); err != nil {
			return nil, err
		}
	}
	f := &SessionFile{path: path, sessions: map[string]*client.ServerCredential{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	} else if err != nil {
		return nil, err
	}

	var stored sessionFileData
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	if stored.Version > fileVersion {
		return nil, fmt.Errorf("session file %s has version %d, newer than %d", path, stored.Version, fileVersion)
	}
	for key, cred := range stored.Sessions {
		if cred == nil || cred.IsExpired() {
			f.dirty = true
			continue
		}
		f.sessions[key] = cred
	}
	return f, nil
}

// serverKey identifies a server by scheme and host; paths are ignored.
func serverKey(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host, nil
}

func (f *SessionFile) GetCredential(serverURL string) (*client.ServerCredential, error) {
	key, err := serverKey(serverURL)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sessions[key], nil
}

func (f *SessionFile) SetCredential(serverURL string, cred *client.ServerCredential) error {
	if cred == nil {
		return f.RemoveCredential(serverURL)
	}
	key, err := serverKey(serverURL)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sessions[key] = cred
	f.dirty = true
	f.mu.Unlock()
	return nil
}

func (f *SessionFile) RemoveCredential(serverURL string) error {
	key, err := serverKey(serverURL)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if _, ok := f.sessions[key]; ok {
		delete(f.sessions, key)
		f.dirty = true
	}
	f.mu.Unlock()
	return nil
}

// ListServers returns the servers with a stored session, sorted.
func (f *SessionFile) ListServers() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.sessions)), nil
}

// Save writes the sessions if anything changed since the last load or
// save. The file is created owner-only and replaced by rename.
func (f *SessionFile) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty {
		return nil
	}

	data, err := json.MarshalIndent(sessionFileData{Version: fileVersion, Sessions: f.sessions}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", f.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	f.dirty = false
	return nil
}

// Path returns the file backing the store.
func (f *SessionFile) Path() string {
	return f.path
}
