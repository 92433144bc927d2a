// プロフィールAPIのエントリポイント。
// 認証済みユーザー自身のプロフィールとユーザー設定のCRUDを提供する。
// 識別プロバイダとドキュメントストアは環境変数で選択する。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/wordwise/internal/api"
	"github.com/nao1215/wordwise/internal/config"
	"github.com/nao1215/wordwise/internal/identity"
	"github.com/nao1215/wordwise/internal/profile"
	"github.com/nao1215/wordwise/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("APIサービスが異常終了しました", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger := logging.New(logging.Config{
		Service: "wordwise-api",
		Env:     cfg.Env(),
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	gate := identity.NewGate(b.provider)
	server := api.NewServer(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Gate:     gate,
		Profiles: profile.NewService(b.store, gate),
	})

	logger.Info("バックエンドを初期化しました",
		"identity_provider", cfg.IdentityProvider,
		"store", cfg.StoreDriver,
		"emulator", cfg.Firebase.Emulator,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("シャットダウンを開始します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	logger.Info("シャットダウンが完了しました")
	return nil
}
