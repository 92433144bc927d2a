// Package config は環境変数からサービスの設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 識別プロバイダとストアの選択肢。
const (
	// ProviderFirebase はFirebase Authenticationを使う。
	ProviderFirebase = "firebase"
	// ProviderLocal はHS256署名のJWTとSQLiteのアカウント台帳を使う。
	ProviderLocal = "local"

	// StoreFirestore はCloud Firestoreを使う。
	StoreFirestore = "firestore"
	// StoreSQLite はローカルのSQLiteファイルを使う。
	StoreSQLite = "sqlite"
)

// Config はAPIサービスの設定。
type Config struct {
	// Host はリッスンするホスト。
	Host string
	// Port はリッスンするポート。
	Port string
	// CORSOrigins はクロスオリジンリクエストを許可するオリジン。
	CORSOrigins []string
	// DevMode は開発モードかどうか。
	DevMode bool
	// LogLevel はログレベル。
	LogLevel string
	// LogFormat はログの出力形式。
	LogFormat string
	// APIDocs はSwagger UIを公開するかどうか。
	APIDocs bool

	// IdentityProvider は利用する識別プロバイダ（"firebase" または "local"）。
	IdentityProvider string
	// StoreDriver は利用するドキュメントストア（"firestore" または "sqlite"）。
	StoreDriver string

	// Firebase はFirebase関連の設定。
	Firebase FirebaseConfig
	// SQLitePath はSQLiteデータベースファイルのパス。
	SQLitePath string
	// LocalJWTSecret はローカル識別プロバイダのHS256秘密鍵。
	LocalJWTSecret string

	// ReadTimeout はHTTPサーバーの読み込みタイムアウト。
	ReadTimeout time.Duration
	// WriteTimeout はHTTPサーバーの書き込みタイムアウト。
	WriteTimeout time.Duration
	// IdleTimeout はHTTPサーバーのアイドルタイムアウト。
	IdleTimeout time.Duration
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration
}

// FirebaseConfig はFirebase Admin SDKの設定。
type FirebaseConfig struct {
	// ProjectID はFirebaseプロジェクトID。
	ProjectID string
	// CredentialsFile はサービスアカウントキーのパス。空ならADCを使う。
	CredentialsFile string
	// Emulator はエミュレータに接続するかどうか。
	Emulator bool
	// FirestoreEmulatorHost はFirestoreエミュレータのアドレス。
	FirestoreEmulatorHost string
	// AuthEmulatorHost はAuthエミュレータのアドレス。
	AuthEmulatorHost string
	// Collection はプロフィールを格納するコレクション名。
	Collection string
}

// Addr はHTTPサーバーのリッスンアドレスを返す。
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Env はロガーに渡す実行環境名を返す。
func (c Config) Env() string {
	if c.DevMode {
		return "dev"
	}
	return "prod"
}

// Load は.envファイルと環境変数から設定を読み込む。
// .envファイルが存在しない場合は環境変数のみを使う。
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv は環境変数から設定を組み立てて検証する。
func FromEnv() (Config, error) {
	emulator := getEnvBool("FIREBASE_EMULATOR", false)

	cfg := Config{
		Host:        getEnvOr("HOST", "0.0.0.0"),
		Port:        getEnvOr("PORT", "8000"),
		CORSOrigins: splitList(getEnvOr("CORS_ORIGINS", "http://localhost:8080,http://localhost:5002")),
		DevMode:     getEnvBool("DEV_MODE", true),
		LogLevel:    getEnvOr("LOG_LEVEL", "info"),
		LogFormat:   getEnvOr("LOG_FORMAT", "json"),
		APIDocs:     getEnvBool("API_DOCS", false),

		IdentityProvider: strings.ToLower(getEnvOr("IDENTITY_PROVIDER", ProviderFirebase)),
		StoreDriver:      strings.ToLower(getEnvOr("STORE_DRIVER", StoreFirestore)),

		Firebase: FirebaseConfig{
			ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsFile: os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH"),
			Emulator:        emulator,
			Collection:      getEnvOr("FIRESTORE_COLLECTION", "users"),
		},
		SQLitePath:     getEnvOr("SQLITE_PATH", "wordwise.db"),
		LocalJWTSecret: getEnvOr("LOCAL_JWT_SECRET", "dev-secret-key"),

		ReadTimeout:     getEnvDurationOr("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDurationOr("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDurationOr("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDurationOr("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if emulator {
		cfg.Firebase.FirestoreEmulatorHost = getEnvOr("FIRESTORE_EMULATOR_HOST", "localhost:8080")
		cfg.Firebase.AuthEmulatorHost = getEnvOr("FIREBASE_AUTH_EMULATOR_HOST", "localhost:9099")
		if cfg.Firebase.ProjectID == "" {
			cfg.Firebase.ProjectID = "demo-wordwise"
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate は設定値の組み合わせを検証する。
func (c Config) validate() error {
	switch c.IdentityProvider {
	case ProviderFirebase, ProviderLocal:
	default:
		return fmt.Errorf("IDENTITY_PROVIDERの値が不正です: %q", c.IdentityProvider)
	}
	switch c.StoreDriver {
	case StoreFirestore, StoreSQLite:
	default:
		return fmt.Errorf("STORE_DRIVERの値が不正です: %q", c.StoreDriver)
	}
	if c.Port == "" {
		return fmt.Errorf("PORTが空です")
	}
	return nil
}

// getEnvOr は環境変数の値を返す。未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDurationOr は"15s"のような期間表記、または秒数の整数を受け付ける。
func getEnvDurationOr(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	return defaultValue
}

// splitList はカンマ区切りの文字列を分割し、空要素を取り除く。
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
