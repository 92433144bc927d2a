// Package logging はslogベースの構造化ロガーを提供する。
//
// サービス全体で共通のロガー設定（出力形式、ログレベル、共通属性）を
// 一箇所で組み立て、リクエスト単位のロガーをcontextで受け渡す。
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config はロガーの設定。
type Config struct {
	// Service はログに付与するサービス名。
	Service string
	// Env は実行環境（"dev", "prod" など）。
	Env string
	// Level はログレベル（"debug", "info", "warn", "error"）。
	Level string
	// Format は出力形式（"json" または "text"）。
	Format string
}

// New は設定に従ってslog.Loggerを生成し、デフォルトロガーとして登録する。
func New(cfg Config) *slog.Logger {
	logger := newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Env == "dev",
		Level:     ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		"service", cfg.Service,
		"env", cfg.Env,
	)
}

// ParseLevel は文字列をslog.Levelに変換する。未知の値はInfoとして扱う。
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKey struct{}

// WithContext はロガーをcontextに格納する。
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext はcontextからロガーを取り出す。
// 格納されていなければslog.Default()を返す。
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
