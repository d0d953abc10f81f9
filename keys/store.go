// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package keys

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/keks/persist"
	"github.com/pkg/errors"
)

// Well known blob names.
const (
	CredentialKey = "ofscp_client_keys"
	SessionKey    = "ofscp_session"
	DomainKey     = "ofscp_provider_domain"
)

// Session is what a signed-in client needs to resume: who it is and with which device key.
type Session struct {
	UserID     string      `json:"user_id"`
	Domain     string      `json:"domain,omitempty"`
	Credential *Credential `json:"keys"`
}

// Store keeps JSON blobs as one file per key inside a directory.
type Store struct {
	dir string
}

// NewStore opens (and creates if needed) a blob directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "keys: failed to create store directory %s", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the blobs live in.
func (s *Store) Dir() string { return s.dir }

var unsafeKeyChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

func (s *Store) path(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", Error{Code: ErrorCodeInvalidKey, Key: key}
	}
	return filepath.Join(s.dir, unsafeKeyChars.Replace(key)+".json"), nil
}

// Save json encodes v under key, replacing any previous value.
func (s *Store) Save(key string, v interface{}) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return Error{Code: ErrorCodeInternal, Key: key, Cause: err}
	}
	if err := persist.Save(f, v); err != nil {
		f.Close()
		return Error{Code: ErrorCodeInternal, Key: key, Cause: err}
	}
	return errors.Wrap(f.Close(), "keys: failed to close blob file")
}

// Load decodes the blob stored under key into v.
func (s *Store) Load(key string, v interface{}) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Error{Code: ErrorCodeNoSuchKey, Key: key}
		}
		return Error{Code: ErrorCodeInternal, Key: key, Cause: err}
	}
	defer f.Close()

	if err := persist.Load(f, v); err != nil {
		if errors.Is(err, io.EOF) {
			return Error{Code: ErrorCodeNoSuchKey, Key: key}
		}
		return Error{Code: ErrorCodeInternal, Key: key, Cause: err}
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (s *Store) Exists(key string) bool {
	p, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Remove deletes the blob. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return Error{Code: ErrorCodeInternal, Key: key, Cause: err}
	}
	return nil
}

func (s *Store) SaveCredential(c Credential) error {
	return s.Save(CredentialKey, c)
}

func (s *Store) LoadCredential() (Credential, error) {
	var c Credential
	err := s.Load(CredentialKey, &c)
	return c, err
}

func (s *Store) SaveSession(sess Session) error {
	return s.Save(SessionKey, sess)
}

func (s *Store) LoadSession() (Session, error) {
	var sess Session
	err := s.Load(SessionKey, &sess)
	return sess, err
}

// Clear forgets the device key and session, as done on sign-out.
func (s *Store) Clear() error {
	if err := s.Remove(SessionKey); err != nil {
		return err
	}
	return s.Remove(CredentialKey)
}
