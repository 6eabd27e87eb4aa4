// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// FileStore is a [Store] adapter that persists each token and named key as
// its own JSON file under a root directory, for single-process
// deployments that want session survival across restarts without a
// separate Redis instance (session.file.sessionsRoot in configuration).
type FileStore struct {
	root string
}

// NewFileStore constructs a [FileStore] rooted at dir. The token and key
// keyspaces are stored in sibling subdirectories so a key named the same
// as a token's key cannot collide on disk.
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"tokens", "keys"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("sessionstore: create %s dir: %w", sub, err)
		}
	}
	return &FileStore{root: dir}, nil
}

type fileKeyRecord struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

func (s *FileStore) tokenPath(key string) string { return filepath.Join(s.root, "tokens", safeName(key)+".json") }
func (s *FileStore) keyPath(name string) string  { return filepath.Join(s.root, "keys", safeName(name)+".json") }

func (s *FileStore) StoreToken(_ context.Context, token Token) error {
	return writeJSON(s.tokenPath(token.Key), token)
}

func (s *FileStore) FetchToken(_ context.Context, key string) (Token, error) {
	var token Token
	ok, err := readJSON(s.tokenPath(key), &token)
	if err != nil {
		return Token{}, fmt.Errorf("sessionstore: read token: %w", err)
	}
	if !ok {
		return Token{}, apperr.NotFound("session token")
	}
	if !token.Expires.After(time.Now()) {
		_ = os.Remove(s.tokenPath(key))
		return Token{}, apperr.NotFound("session token")
	}
	return token, nil
}

func (s *FileStore) DeleteTokens(_ context.Context, keys ...string) error {
	for _, k := range keys {
		if err := removeIfExists(s.tokenPath(k)); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) ConfirmToken(ctx context.Context, key, password string) (UserView, error) {
	token, err := s.FetchToken(ctx, key)
	if err != nil || token.Password != password {
		return UserView{}, errConfirmFailed()
	}
	return UserView{UserID: token.UserID, Roles: token.Roles, Key: token.Key}, nil
}

func (s *FileStore) StoreKey(_ context.Context, name string, ttl time.Duration, value string) error {
	return writeJSON(s.keyPath(name), fileKeyRecord{Value: value, Expires: time.Now().Add(ttl)})
}

func (s *FileStore) GetKey(_ context.Context, name string) (string, bool, error) {
	var record fileKeyRecord
	ok, err := readJSON(s.keyPath(name), &record)
	if err != nil {
		return "", false, fmt.Errorf("sessionstore: read key: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	if !record.Expires.After(time.Now()) {
		_ = os.Remove(s.keyPath(name))
		return "", false, nil
	}
	return record.Value, true, nil
}

func (s *FileStore) DeleteKeys(_ context.Context, names ...string) error {
	for _, n := range names {
		if err := removeIfExists(s.keyPath(n)); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) Quit() error { return nil }

var _ Store = (*FileStore)(nil)

// # Internals

func safeName(raw string) string {
	// Tokens/keys are generated identifiers (hex, base64url, invite
	// codes); this only guards against a key containing a path separator
	// from ever escaping the root directory.
	replacer := func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '_'
		}
		return r
	}
	out := make([]rune, 0, len(raw))
	for _, r := range raw {
		out = append(out, replacer(r))
	}
	return string(out)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("sessionstore: write: %w", err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sessionstore: remove: %w", err)
	}
	return nil
}
