package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	fb "firebase.google.com/go/v4"

	"github.com/nao1215/wordwise/internal/config"
	"github.com/nao1215/wordwise/internal/identity"
	fbidentity "github.com/nao1215/wordwise/internal/identity/firebase"
	"github.com/nao1215/wordwise/internal/identity/local"
	"github.com/nao1215/wordwise/internal/profile"
	fsstore "github.com/nao1215/wordwise/internal/store/firestore"
	sqlitestore "github.com/nao1215/wordwise/internal/store/sqlite"
)

// backends は設定に応じて選んだ識別プロバイダとドキュメントストア。
// FirebaseアプリとSQLite接続は両方の選択で共有する。
type backends struct {
	provider identity.Provider
	store    profile.Store

	app     *fb.App
	db      *sql.DB
	closers []func() error
}

// newBackends は設定から識別プロバイダとストアを組み立てる。
func newBackends(ctx context.Context, cfg config.Config) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	switch cfg.IdentityProvider {
	case config.ProviderLocal:
		db, err := b.sqlite(cfg)
		if err != nil {
			return nil, err
		}
		p, err := local.New(db, cfg.LocalJWTSecret)
		if err != nil {
			return nil, fmt.Errorf("ローカル識別プロバイダの初期化に失敗: %w", err)
		}
		b.provider = p
	default:
		app, err := b.firebase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("Firebase Authクライアントの初期化に失敗: %w", err)
		}
		b.provider = fbidentity.New(client)
	}

	switch cfg.StoreDriver {
	case config.StoreSQLite:
		db, err := b.sqlite(cfg)
		if err != nil {
			return nil, err
		}
		s, err := sqlitestore.New(db)
		if err != nil {
			return nil, fmt.Errorf("SQLiteストアの初期化に失敗: %w", err)
		}
		b.store = s
	default:
		app, err := b.firebase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("Firestoreクライアントの初期化に失敗: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.store = fsstore.New(client, cfg.Firebase.Collection)
	}

	return b, nil
}

// sqlite はSQLite接続を一度だけ開く。
func (b *backends) sqlite(cfg config.Config) (*sql.DB, error) {
	if b.db != nil {
		return b.db, nil
	}
	db, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	b.db = db
	b.closers = append(b.closers, db.Close)
	return db, nil
}

// firebase はFirebaseアプリを一度だけ初期化する。
func (b *backends) firebase(ctx context.Context, cfg config.Config) (*fb.App, error) {
	if b.app != nil {
		return b.app, nil
	}
	app, err := fbidentity.NewApp(ctx, cfg.Firebase)
	if err != nil {
		return nil, err
	}
	b.app = app
	return app, nil
}

// Close は開いたクライアントと接続を逆順に閉じる。
func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
