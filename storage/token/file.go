// Package token persists a bearer token on disk for command-line clients.
package token

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

type fileData struct {
	Token   string     `json:"token,omitempty"`
	Profile *user.User `json:"profile,omitempty"`
}

// File keeps a single token, and the profile last confirmed for it, in a JSON file readable only by its owner.
// It serves both as the TokenStorage and the ProfileCache of a session.Store.
type File struct {
	path string
	mu   sync.Mutex
}

var (
	_ session.TokenStorage = (*File)(nil)
	_ session.ProfileCache  = (*File)(nil)
)

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

func (f *File) Token() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	return data.Token, err
}

func (f *File) SetToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	if data.Token != token {
		data.Profile = nil
	}
	data.Token = token
	return f.write(data)
}

// ClearToken removes the file. Clearing an absent file is not an error.
func (f *File) ClearToken() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing token file")
	}
	return nil
}

func (f *File) Get(_ context.Context, token string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return user.User{}, err
	}
	if data.Profile == nil || data.Token != token {
		return user.User{}, session.ErrProfileNotFound
	}
	return *data.Profile, nil
}

func (f *File) Set(_ context.Context, token string, usr user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	if data.Token != token {
		return nil
	}
	data.Profile = &usr
	return f.write(data)
}

func (f *File) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	if data.Token != token || data.Profile == nil {
		return nil
	}
	data.Profile = nil
	return f.write(data)
}

func (f *File) read() (fileData, error) {
	var data fileData
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return data, errors.Wrap(err, "reading token file")
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fileData{}, errors.Wrapf(err, "decoding token file %s", f.path)
	}
	return data, nil
}

func (f *File) write(data fileData) error {
	if data.Token == "" {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "removing token file")
		}
		return nil
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding token file")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "creating token dir")
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, "writing token file")
	}
	return errors.Wrap(os.Rename(tmp, f.path), "replacing token file")
}
