// Package identity はベアラートークンを検証して識別レコードを組み立てる
// 認証ゲートを提供する。
//
// トークンの検証とアカウント情報の取得は外部の識別プロバイダに委譲し、
// プロバイダ固有の失敗は Kind に分類して返す。HTTPステータスへの対応付けは
// 呼び出し側の責務とする。
package identity

import (
	"context"
	"errors"
)

// プロバイダ実装が返す失敗の種類。実装はこれらを%wでラップして返す。
var (
	// ErrTokenExpired はトークンの有効期限切れ。
	ErrTokenExpired = errors.New("identity: token expired")
	// ErrTokenRevoked はトークンが失効済み。
	ErrTokenRevoked = errors.New("identity: token revoked")
	// ErrTokenInvalid はトークンの形式不正または署名不正。
	ErrTokenInvalid = errors.New("identity: token invalid")
	// ErrAccountNotFound はサブジェクトのアカウントが存在しない。
	ErrAccountNotFound = errors.New("identity: account not found")
)

// Record は認証済みリクエストの識別レコード。
// SubjectIDは必ず設定されている。検証に失敗した場合は組み立てられない。
type Record struct {
	// SubjectID はサブジェクトの安定した識別子。
	SubjectID string `json:"subject_id"`
	// Email はメールアドレス。無ければ空文字列。
	Email string `json:"email,omitempty"`
	// EmailVerified はメールアドレスが検証済みかどうか。
	EmailVerified bool `json:"email_verified"`
	// DisplayName は表示名。無ければ空文字列。
	DisplayName string `json:"display_name,omitempty"`
}

// Claims は検証済みトークンから取り出したクレーム。
type Claims struct {
	// Subject はトークンに埋め込まれたサブジェクトID。
	Subject string
	// Email はメールアドレス。
	Email string
	// EmailVerified はメールアドレスが検証済みかどうか。
	EmailVerified bool
}

// Account はプロバイダが保持しているアカウント情報。
type Account struct {
	// UID はサブジェクトID。
	UID string
	// Email はメールアドレス。
	Email string
	// DisplayName は現在の表示名。
	DisplayName string
}

// Provider は外部の識別プロバイダ。
type Provider interface {
	// VerifyToken はトークンの署名・有効期限・失効状態を検証する。
	VerifyToken(ctx context.Context, token string) (Claims, error)
	// LookupAccount はサブジェクトの現在のアカウント情報を取得する。
	LookupAccount(ctx context.Context, uid string) (Account, error)
	// DeleteAccount はサブジェクトのアカウントを削除する。
	DeleteAccount(ctx context.Context, uid string) error
}
