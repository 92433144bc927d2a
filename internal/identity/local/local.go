// Package local はHS256署名のJWTとSQLiteのアカウント台帳による識別プロバイダを提供する。
//
// Firebaseを使わないローカル開発とテストのための実装。トークンを初めて
// 検証したときにアカウントを台帳へ登録し、以降は台帳の状態（削除・失効）を
// 検証結果に反映する。
package local

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/wordwise/internal/identity"
	"github.com/nao1215/wordwise/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	// migrationsTable はこのパッケージのマイグレーション管理テーブル名。
	migrationsTable = "account_schema_migrations"
	// Issuer はこのプロバイダが発行するトークンのiss。
	Issuer = "wordwise-local"
)

// Claims はローカルトークンのクレーム。
type Claims struct {
	jwt.RegisteredClaims
	// Email はメールアドレス。
	Email string `json:"email,omitempty"`
	// EmailVerified はメールアドレスが検証済みかどうか。
	EmailVerified bool `json:"email_verified"`
	// Name は表示名。アカウント登録時にだけ使う。
	Name string `json:"name,omitempty"`
}

// Provider はローカルの識別プロバイダ。
type Provider struct {
	db     *sql.DB
	secret []byte
	now    func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

// New はスキーマを適用して新しいプロバイダを生成する。
func New(db *sql.DB, secret string) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("JWT秘密鍵が空です")
	}
	if err := migration.Run(db, migrations, "migrations", migrationsTable); err != nil {
		return nil, fmt.Errorf("アカウント台帳の初期化に失敗: %w", err)
	}
	return &Provider{db: db, secret: []byte(secret), now: time.Now}, nil
}

// IssueToken はアカウント情報からトークンを発行する。
func (p *Provider) IssueToken(uid, email, name string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:         email,
		EmailVerified: email != "",
		Name:          name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// VerifyToken はトークンの署名と有効期限を検証し、台帳の状態を確認する。
func (p *Provider) VerifyToken(ctx context.Context, token string) (identity.Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Claims{}, fmt.Errorf("%w: %v", identity.ErrTokenExpired, err)
		}
		return identity.Claims{}, fmt.Errorf("%w: %v", identity.ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return identity.Claims{}, fmt.Errorf("%w: subが空です", identity.ErrTokenInvalid)
	}

	acc, err := p.register(ctx, claims)
	if err != nil {
		return identity.Claims{}, err
	}
	if acc.deleted {
		return identity.Claims{}, identity.ErrAccountNotFound
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Unix() < acc.tokensValidAfter {
		return identity.Claims{}, identity.ErrTokenRevoked
	}

	return identity.Claims{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// account は台帳の1行。
type account struct {
	identity.Account
	tokensValidAfter int64
	deleted          bool
}

// register は未登録のサブジェクトを台帳に登録し、現在の行を返す。
func (p *Provider) register(ctx context.Context, claims *Claims) (account, error) {
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO accounts (uid, email, display_name, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (uid) DO NOTHING`,
		claims.Subject, claims.Email, claims.Name, p.now().Unix(),
	); err != nil {
		return account{}, fmt.Errorf("アカウントの登録に失敗: %w", err)
	}
	return p.load(ctx, claims.Subject)
}

func (p *Provider) load(ctx context.Context, uid string) (account, error) {
	var (
		acc       account
		deletedAt sql.NullInt64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT uid, email, display_name, tokens_valid_after, deleted_at FROM accounts WHERE uid = ?`, uid,
	).Scan(&acc.UID, &acc.Email, &acc.DisplayName, &acc.tokensValidAfter, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account{}, identity.ErrAccountNotFound
	}
	if err != nil {
		return account{}, fmt.Errorf("アカウントの読み込みに失敗: %w", err)
	}
	acc.deleted = deletedAt.Valid
	return acc, nil
}

// LookupAccount は削除されていないアカウントを返す。
func (p *Provider) LookupAccount(ctx context.Context, uid string) (identity.Account, error) {
	acc, err := p.load(ctx, uid)
	if err != nil {
		return identity.Account{}, err
	}
	if acc.deleted {
		return identity.Account{}, identity.ErrAccountNotFound
	}
	return acc.Account, nil
}

// DeleteAccount はアカウントに削除済みの印を付ける。
// 同じサブジェクトのトークンは以降ErrAccountNotFoundになる。
func (p *Provider) DeleteAccount(ctx context.Context, uid string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE accounts SET deleted_at = ? WHERE uid = ? AND deleted_at IS NULL`,
		p.now().Unix(), uid,
	)
	if err != nil {
		return fmt.Errorf("アカウントの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

// RevokeTokens は現在時刻より前に発行されたトークンをすべて失効させる。
func (p *Provider) RevokeTokens(ctx context.Context, uid string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE accounts SET tokens_valid_after = ? WHERE uid = ? AND deleted_at IS NULL`,
		p.now().Unix(), uid,
	)
	if err != nil {
		return fmt.Errorf("トークンの失効に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("失効件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

// UpdateDisplayName はアカウントの表示名を変更する。
func (p *Provider) UpdateDisplayName(ctx context.Context, uid, name string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE accounts SET display_name = ? WHERE uid = ? AND deleted_at IS NULL`, name, uid,
	)
	if err != nil {
		return fmt.Errorf("表示名の更新に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}
