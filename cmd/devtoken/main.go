// ローカル識別プロバイダ用のトークン発行ツール。
// IDENTITY_PROVIDER=local で起動したAPIサーバーに対して使うトークンを標準出力に書き出す。
//
// 使い方:
//
//	devtoken -uid alice -email alice@example.com -name Alice
//	devtoken -uid alice -revoke
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/wordwise/internal/config"
	"github.com/nao1215/wordwise/internal/identity/local"
	sqlitestore "github.com/nao1215/wordwise/internal/store/sqlite"
	"github.com/nao1215/wordwise/pkg/logging"
)

func main() {
	var (
		uid    = flag.String("uid", "", "サブジェクトID（必須）")
		email  = flag.String("email", "", "メールアドレス")
		name   = flag.String("name", "", "初回登録時の表示名")
		rename = flag.String("rename", "", "登録済みアカウントの表示名を変更する")
		ttl    = flag.Duration("ttl", time.Hour, "トークンの有効期間")
		revoke = flag.Bool("revoke", false, "発行済みトークンをすべて失効させる")
	)
	flag.Parse()

	if err := run(*uid, *email, *name, *rename, *ttl, *revoke); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
}

func run(uid, email, name, rename string, ttl time.Duration, revoke bool) error {
	if uid == "" {
		return fmt.Errorf("-uidを指定してください")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	logging.New(logging.Config{Service: "wordwise-devtoken", Env: cfg.Env(), Level: "warn", Format: "text"})

	db, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := local.New(db, cfg.LocalJWTSecret)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if revoke {
		if err := p.RevokeTokens(ctx, uid); err != nil {
			return err
		}
		slog.Warn("トークンを失効させました", "uid", uid)
		return nil
	}
	if rename != "" {
		if err := p.UpdateDisplayName(ctx, uid, rename); err != nil {
			return err
		}
	}

	token, err := p.IssueToken(uid, email, name, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
