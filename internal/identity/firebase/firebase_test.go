package firebase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/wordwise/internal/config"
	"github.com/nao1215/wordwise/internal/identity"
)

// fakeAuth はテスト用の*auth.Clientの代替。
type fakeAuth struct {
	token     *auth.Token
	verifyErr error
	user      *auth.UserRecord
	getErr    error
	deleted   []string
}

func (f *fakeAuth) VerifyIDTokenAndCheckRevoked(_ context.Context, _ string) (*auth.Token, error) {
	return f.token, f.verifyErr
}

func (f *fakeAuth) GetUser(_ context.Context, _ string) (*auth.UserRecord, error) {
	return f.user, f.getErr
}

func (f *fakeAuth) DeleteUser(_ context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

func TestVerifyToken(t *testing.T) {
	t.Parallel()

	t.Run("UIDとメールのクレームを取り出すこと", func(t *testing.T) {
		t.Parallel()

		p := &Provider{client: &fakeAuth{token: &auth.Token{
			UID:    "u1",
			Claims: map[string]any{"email": "u1@x.com", "email_verified": true},
		}}}

		got, err := p.VerifyToken(context.Background(), "token")
		require.NoError(t, err)
		assert.Equal(t, identity.Claims{Subject: "u1", Email: "u1@x.com", EmailVerified: true}, got)
	})

	t.Run("メールのクレームが無くても検証できること", func(t *testing.T) {
		t.Parallel()

		p := &Provider{client: &fakeAuth{token: &auth.Token{UID: "anon", Claims: map[string]any{}}}}

		got, err := p.VerifyToken(context.Background(), "token")
		require.NoError(t, err)
		assert.Equal(t, identity.Claims{Subject: "anon"}, got)
	})

	t.Run("分類できないエラーは識別エラーにならないこと", func(t *testing.T) {
		t.Parallel()

		p := &Provider{client: &fakeAuth{verifyErr: errors.New("network down")}}

		_, err := p.VerifyToken(context.Background(), "token")
		require.Error(t, err)
		assert.NotErrorIs(t, err, identity.ErrTokenInvalid)
		assert.NotErrorIs(t, err, identity.ErrTokenExpired)
	})
}

func TestLookupAccount(t *testing.T) {
	t.Parallel()

	p := &Provider{client: &fakeAuth{user: &auth.UserRecord{
		UserInfo: &auth.UserInfo{UID: "u1", Email: "u1@x.com", DisplayName: "Alice"},
	}}}

	got, err := p.LookupAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, identity.Account{UID: "u1", Email: "u1@x.com", DisplayName: "Alice"}, got)
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()

	f := &fakeAuth{}
	p := &Provider{client: f}

	require.NoError(t, p.DeleteAccount(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, f.deleted)
}

func TestCredentialOptions(t *testing.T) {
	t.Parallel()

	t.Run("キーファイルが存在すればそのファイルを使うこと", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

		assert.Len(t, credentialOptions(config.FirebaseConfig{CredentialsFile: path}), 1)
	})

	t.Run("キーファイルが存在しなければADCにフォールバックすること", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "missing.json")
		assert.Empty(t, credentialOptions(config.FirebaseConfig{CredentialsFile: missing}))
	})

	t.Run("パス未指定とエミュレータではオプションを付けないこと", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, credentialOptions(config.FirebaseConfig{}))
		assert.Empty(t, credentialOptions(config.FirebaseConfig{Emulator: true, CredentialsFile: "key.json"}))
	})
}
