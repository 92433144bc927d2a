// Package sqlite はSQLiteをバックエンドとするプロフィールストアを提供する。
//
// Firestoreを使わないローカル開発やテストで使う。ドキュメントは
// profilesテーブルの1行に対応し、タイムスタンプはストア側で付与する。
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nao1215/wordwise/internal/profile"
	"github.com/nao1215/wordwise/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrationsTable はこのパッケージのマイグレーション管理テーブル名。
const migrationsTable = "profile_schema_migrations"

// timeLayout はタイムスタンプの保存形式。
const timeLayout = time.RFC3339Nano

// Open はSQLiteデータベースを開く。pathに":memory:"を指定するとインメモリDBになる。
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		// :memory: は接続ごとに別のDBになるため接続を1本に固定する
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベース接続の確認に失敗: %w", err)
	}
	return db, nil
}

// Store はSQLiteによるprofile.Storeの実装。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// now はストアが付与するタイムスタンプの時計。
	now func() time.Time
}

var _ profile.Store = (*Store)(nil)

// New はスキーマを適用して新しいストアを生成する。
func New(db *sql.DB) (*Store, error) {
	if err := migration.Run(db, migrations, "migrations", migrationsTable); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// row はprofilesテーブルの1行。
type row struct {
	UID         string
	Email       string
	DisplayName sql.NullString
	CreatedAt   string
	UpdatedAt   sql.NullString
	Preferences sql.NullString
	Role        sql.NullString
	Persona     sql.NullString
	Onboarded   bool
}

const selectProfile = `SELECT uid, email, display_name, created_at, updated_at, preferences,
	role, persona, onboarding_completed FROM profiles WHERE uid = ?`

// queryer は*sql.DBと*sql.Txの共通部分。
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryer, uid string) (profile.Document, error) {
	var r row
	err := q.QueryRowContext(ctx, selectProfile, uid).Scan(
		&r.UID, &r.Email, &r.DisplayName, &r.CreatedAt, &r.UpdatedAt, &r.Preferences,
		&r.Role, &r.Persona, &r.Onboarded,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Document{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Document{}, fmt.Errorf("プロフィール行の読み込みに失敗: %w", err)
	}
	return r.toDocument()
}

// toDocument は行をドキュメントに変換する。
func (r row) toDocument() (profile.Document, error) {
	createdAt, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return profile.Document{}, fmt.Errorf("created_atの解析に失敗: %w", err)
	}

	doc := profile.Document{
		UID:                 r.UID,
		Email:               r.Email,
		CreatedAt:           createdAt,
		DisplayName:         stringPtr(r.DisplayName),
		Role:                stringPtr(r.Role),
		Persona:             stringPtr(r.Persona),
		OnboardingCompleted: r.Onboarded,
	}
	if r.UpdatedAt.Valid {
		updatedAt, err := time.Parse(timeLayout, r.UpdatedAt.String)
		if err != nil {
			return profile.Document{}, fmt.Errorf("updated_atの解析に失敗: %w", err)
		}
		doc.UpdatedAt = &updatedAt
	}
	if r.Preferences.Valid {
		var prefs profile.Preferences
		if err := json.Unmarshal([]byte(r.Preferences.String), &prefs); err != nil {
			return profile.Document{}, fmt.Errorf("preferencesの解析に失敗: %w", err)
		}
		doc.Preferences = &prefs
	}
	return doc, nil
}

// Get はuidのドキュメントを返す。
func (s *Store) Get(ctx context.Context, uid string) (profile.Document, error) {
	return get(ctx, s.db, uid)
}

// Create はドキュメントが存在しない場合に限り作成する。
// INSERT ... ON CONFLICT DO NOTHING で判定と書き込みを1文で行う。
func (s *Store) Create(ctx context.Context, nd profile.NewDocument) (profile.Document, error) {
	prefs, err := json.Marshal(nd.Preferences)
	if err != nil {
		return profile.Document{}, fmt.Errorf("preferencesのシリアライズに失敗: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (uid, email, display_name, created_at, preferences)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (uid) DO NOTHING`,
		nd.UID, nd.Email, nullString(nd.DisplayName), s.now().Format(timeLayout), string(prefs),
	)
	if err != nil {
		return profile.Document{}, fmt.Errorf("プロフィール行の挿入に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return profile.Document{}, fmt.Errorf("挿入件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return profile.Document{}, profile.ErrAlreadyExists
	}

	return s.Get(ctx, nd.UID)
}

// Update はトランザクション内で現在の行を読み、パッチを適用して書き戻す。
func (s *Store) Update(ctx context.Context, uid string, patch profile.Patch) (profile.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return profile.Document{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := get(ctx, tx, uid)
	if err != nil {
		return profile.Document{}, err
	}

	next := patch.Apply(current, s.now())

	var prefs sql.NullString
	if next.Preferences != nil {
		b, err := json.Marshal(next.Preferences)
		if err != nil {
			return profile.Document{}, fmt.Errorf("preferencesのシリアライズに失敗: %w", err)
		}
		prefs = sql.NullString{String: string(b), Valid: true}
	}
	var updatedAt sql.NullString
	if next.UpdatedAt != nil {
		updatedAt = sql.NullString{String: next.UpdatedAt.Format(timeLayout), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET display_name = ?, preferences = ?, updated_at = ?,
		 role = ?, persona = ?, onboarding_completed = ? WHERE uid = ?`,
		nullString(next.DisplayName), prefs, updatedAt,
		nullString(next.Role), nullString(next.Persona), next.OnboardingCompleted, uid,
	); err != nil {
		return profile.Document{}, fmt.Errorf("プロフィール行の更新に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return profile.Document{}, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return next, nil
}

// Delete は行を削除する。存在しなくてもエラーにしない。
func (s *Store) Delete(ctx context.Context, uid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("プロフィール行の削除に失敗: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
