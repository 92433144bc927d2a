// Package firebase はFirebase Authenticationによる識別プロバイダを提供する。
package firebase

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/nao1215/wordwise/internal/config"
	"github.com/nao1215/wordwise/internal/identity"
)

// NewApp は設定からFirebaseアプリを初期化する。
// エミュレータモードでは認証情報を使わず、SDKが参照する環境変数を設定する。
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	if cfg.Emulator {
		if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.FirestoreEmulatorHost); err != nil {
			return nil, fmt.Errorf("FIRESTORE_EMULATOR_HOSTの設定に失敗: %w", err)
		}
		if err := os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.AuthEmulatorHost); err != nil {
			return nil, fmt.Errorf("FIREBASE_AUTH_EMULATOR_HOSTの設定に失敗: %w", err)
		}
	}
	opts := credentialOptions(cfg)

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("Firebaseアプリの初期化に失敗: %w", err)
	}
	return app, nil
}

// credentialOptions は認証情報のオプションを返す。
// サービスアカウントキーのファイルが無い場合はADCにフォールバックする。
func credentialOptions(cfg config.FirebaseConfig) []option.ClientOption {
	if cfg.Emulator || cfg.CredentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		slog.Warn("サービスアカウントキーを読み込めないためADCを使います",
			"path", cfg.CredentialsFile,
			"err", err,
		)
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

// tokenVerifier は*auth.Clientのうちプロバイダが使う部分。
type tokenVerifier interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

// Provider はFirebase Authenticationによるidentity.Providerの実装。
type Provider struct {
	client tokenVerifier
}

var _ identity.Provider = (*Provider)(nil)

// New は新しいプロバイダを生成する。
func New(client *auth.Client) *Provider {
	return &Provider{client: client}
}

// VerifyToken はIDトークンの署名・有効期限・失効状態を検証する。
func (p *Provider) VerifyToken(ctx context.Context, token string) (identity.Claims, error) {
	tok, err := p.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		return identity.Claims{}, classify(err)
	}

	claims := identity.Claims{Subject: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		claims.Email = email
	}
	if verified, ok := tok.Claims["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}
	return claims, nil
}

// LookupAccount はユーザーレコードを取得する。
func (p *Provider) LookupAccount(ctx context.Context, uid string) (identity.Account, error) {
	u, err := p.client.GetUser(ctx, uid)
	if err != nil {
		return identity.Account{}, classify(err)
	}
	acc := identity.Account{UID: uid}
	if u.UserInfo != nil {
		acc.Email = u.Email
		acc.DisplayName = u.DisplayName
	}
	return acc, nil
}

// DeleteAccount はユーザーを削除する。
func (p *Provider) DeleteAccount(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		return classify(err)
	}
	return nil
}

// classify はSDKのエラーをidentityパッケージのエラーでラップする。
func classify(err error) error {
	switch {
	case auth.IsIDTokenExpired(err):
		return fmt.Errorf("%w: %v", identity.ErrTokenExpired, err)
	case auth.IsIDTokenRevoked(err), auth.IsUserDisabled(err):
		return fmt.Errorf("%w: %v", identity.ErrTokenRevoked, err)
	case auth.IsUserNotFound(err):
		return fmt.Errorf("%w: %v", identity.ErrAccountNotFound, err)
	case auth.IsIDTokenInvalid(err):
		return fmt.Errorf("%w: %v", identity.ErrTokenInvalid, err)
	default:
		return fmt.Errorf("Firebase Authの呼び出しに失敗: %w", err)
	}
}
