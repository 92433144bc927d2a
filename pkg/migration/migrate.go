// Package migration はSQLiteデータベースのマイグレーションを管理する。
// embed.FSからSQLファイルを読み込み、golang-migrateで適用状態を追跡する。
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Run はembedされたマイグレーションファイルを順序通りに適用する。
// 未適用のマイグレーションのみ実行し、適用済みのものはスキップする。
// ファイル名形式: 000001_description.up.sql
//
// 同じデータベースを複数のパッケージが使う場合に備えて、
// バージョン管理テーブル名はパッケージごとに指定する。
func Run(db *sql.DB, fsys fs.FS, dir, table string) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: table})
	if err != nil {
		return fmt.Errorf("マイグレーションドライバの作成に失敗: %w", err)
	}

	source, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("マイグレーションファイルの読み込みに失敗: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("マイグレーションの初期化に失敗: %w", err)
	}

	// m.Close()はdbまで閉じてしまうため呼ばない。
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}
	slog.Info("マイグレーションを適用しました", "table", table, "version", version)

	return nil
}
