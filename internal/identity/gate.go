package identity

import (
	"context"
	"errors"
	"fmt"
)

// Kind は認証失敗の分類。
type Kind int

const (
	// KindUnknown は分類できない検証エラー。
	KindUnknown Kind = iota
	// KindExpired はトークンの有効期限切れ。
	KindExpired
	// KindRevoked はトークンの失効。
	KindRevoked
	// KindInvalid は形式不正または署名不正。
	KindInvalid
	// KindAccountNotFound はトークン発行後にアカウントが削除された。
	KindAccountNotFound
	// KindMissingToken はAuthorizationヘッダーが無いか形式が不正。
	KindMissingToken
)

// String はログ・レスポンス用の名前を返す。
func (k Kind) String() string {
	switch k {
	case KindExpired:
		return "token_expired"
	case KindRevoked:
		return "token_revoked"
	case KindInvalid:
		return "token_invalid"
	case KindAccountNotFound:
		return "account_not_found"
	case KindMissingToken:
		return "missing_token"
	default:
		return "unauthorized"
	}
}

// Failure は認証ゲートの失敗結果。
type Failure struct {
	// Kind は失敗の分類。
	Kind Kind
	// Err はプロバイダが返した元のエラー。
	Err error
}

// Error はクライアントに返せる説明文を返す。
func (f *Failure) Error() string {
	switch f.Kind {
	case KindExpired:
		return "認証トークンの有効期限が切れています。再度サインインしてください"
	case KindRevoked:
		return "認証トークンは失効しています"
	case KindInvalid:
		return "認証トークンが無効です"
	case KindAccountNotFound:
		return "アカウントが見つかりません"
	case KindMissingToken:
		return "Bearer トークンが必要です"
	default:
		if f.Err != nil {
			return fmt.Sprintf("認証情報が無効です: %v", f.Err)
		}
		return "認証情報が無効です"
	}
}

// Unwrap は元のエラーを返す。
func (f *Failure) Unwrap() error {
	return f.Err
}

// classify はプロバイダのエラーを失敗の分類に変換する。
func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return KindExpired
	case errors.Is(err, ErrTokenRevoked):
		return KindRevoked
	case errors.Is(err, ErrTokenInvalid):
		return KindInvalid
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	default:
		return KindUnknown
	}
}

// Gate はベアラートークンから識別レコードを組み立てる認証ゲート。
// 検証の失敗はそのリクエストで終端し、再試行しない。
type Gate struct {
	provider Provider
}

// NewGate は新しい認証ゲートを生成する。
func NewGate(provider Provider) *Gate {
	return &Gate{provider: provider}
}

// Authenticate はトークンを検証し、アカウント情報の表示名とマージした
// 識別レコードを返す。失敗時は*Failureを返す。
func (g *Gate) Authenticate(ctx context.Context, token string) (Record, error) {
	if token == "" {
		return Record{}, &Failure{Kind: KindMissingToken}
	}

	claims, err := g.provider.VerifyToken(ctx, token)
	if err != nil {
		return Record{}, &Failure{Kind: classify(err), Err: err}
	}
	if claims.Subject == "" {
		return Record{}, &Failure{Kind: KindInvalid, Err: errors.New("subject claim is empty")}
	}

	// トークンの表示名は古い可能性があるため、アカウントから取り直す
	account, err := g.provider.LookupAccount(ctx, claims.Subject)
	if err != nil {
		return Record{}, &Failure{Kind: classify(err), Err: err}
	}

	return Record{
		SubjectID:     claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   account.DisplayName,
	}, nil
}

// DeleteAccount はプロバイダ上のアカウントを削除する。
func (g *Gate) DeleteAccount(ctx context.Context, uid string) error {
	return g.provider.DeleteAccount(ctx, uid)
}
