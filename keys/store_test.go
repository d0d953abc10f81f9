// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundtrip(t *testing.T) {
	r := require.New(t)

	s, err := NewStore(t.TempDir())
	r.NoError(err)

	_, err = s.LoadCredential()
	r.Error(err)
	r.True(IsNoSuchKey(err), "got %v", err)

	cred, err := Generate(nil)
	r.NoError(err)
	cred = cred.WithKeyID("device-1")

	r.NoError(s.SaveCredential(cred))
	r.True(s.Exists(CredentialKey))

	loaded, err := s.LoadCredential()
	r.NoError(err)
	r.Equal(cred, loaded)

	sess := Session{UserID: "alice@chat.example", Domain: "chat.example", Credential: &cred}
	r.NoError(s.SaveSession(sess))

	gotSess, err := s.LoadSession()
	r.NoError(err)
	r.Equal(sess.UserID, gotSess.UserID)
	r.Equal(sess.Domain, gotSess.Domain)
	r.NotNil(gotSess.Credential)
	r.Equal(cred, *gotSess.Credential)

	// overwrite with a shorter value must not leave trailing bytes behind
	r.NoError(s.Save(DomainKey, "a-much-longer-domain.example"))
	r.NoError(s.Save(DomainKey, "b.example"))
	var domain string
	r.NoError(s.Load(DomainKey, &domain))
	r.Equal("b.example", domain)

	r.NoError(s.Clear())
	r.False(s.Exists(CredentialKey))
	r.False(s.Exists(SessionKey))
	r.NoError(s.Remove(SessionKey), "removing twice is fine")
}

func TestStoreKeySanitizing(t *testing.T) {
	r := require.New(t)

	s, err := NewStore(t.TempDir())
	r.NoError(err)

	r.NoError(s.Save("host:8080/path", 42))
	var v int
	r.NoError(s.Load("host:8080/path", &v))
	r.Equal(42, v)

	err = s.Save("  ", 1)
	r.Error(err)
	kerr, ok := err.(Error)
	r.True(ok)
	r.Equal(ErrorCodeInvalidKey, kerr.Code)
}
