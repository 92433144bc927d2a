package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/nao1215/wordwise/docs" // Swaggerドキュメント
	"github.com/nao1215/wordwise/internal/config"
	"github.com/nao1215/wordwise/internal/profile"
	"github.com/nao1215/wordwise/pkg/middleware"
)

// Deps はサーバーが使う依存。cmd/apiで一度だけ組み立てて渡す。
type Deps struct {
	// Config はサービスの設定。
	Config config.Config
	// Logger はベースのロガー。
	Logger *slog.Logger
	// Gate はベアラートークンの認証ゲート。
	Gate middleware.Authenticator
	// Profiles はプロフィールのユースケース。
	Profiles *profile.Service
}

// Server はプロフィールAPIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はタイムアウト付きのHTTPサーバー。
	httpServer *http.Server
	// cfg はサービスの設定。
	cfg config.Config
	// logger はベースのロガー。
	logger *slog.Logger
	// gate はベアラートークンの認証ゲート。
	gate middleware.Authenticator
	// profiles はプロフィールのユースケース。
	profiles *profile.Service
	// now はヘルスチェックの時刻。
	now func() time.Time
}

// NewServer は新しいAPIサーバーを生成する。
//
//	@title						Wordwise User API
//	@version					1.0.0
//	@description				認証済みユーザー自身のプロフィールとユーザー設定を管理するAPI。
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				IDトークン。形式: "Bearer {token}"
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(deps.Config.CORSOrigins))

	s := &Server{
		router:   router,
		cfg:      deps.Config,
		logger:   logger,
		gate:     deps.Gate,
		profiles: deps.Profiles,
		now:      time.Now,
	}
	s.httpServer = &http.Server{
		Addr:         deps.Config.Addr(),
		Handler:      router,
		ReadTimeout:  deps.Config.ReadTimeout,
		WriteTimeout: deps.Config.WriteTimeout,
		IdleTimeout:  deps.Config.IdleTimeout,
	}
	s.setupRoutes()

	return s
}

// Handler はルーティング済みのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。Shutdownで停止した場合はnilを返す。
func (s *Server) Run() error {
	s.logger.Info("APIサーバーを起動します", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストを待ってからサーバーを停止する。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	users := s.router.Group("/v1/users")
	users.Use(middleware.BearerAuth(s.gate))
	{
		me := users.Group("/me")
		{
			// プロフィール取得
			me.GET("", s.handleGetProfile())
			// プロフィール作成
			me.POST("", s.handleCreateProfile())
			// プロフィール更新
			me.PUT("", s.handleUpdateProfile())
			// プロフィールとアカウントの削除
			me.DELETE("", s.handleDeleteProfile())
			// ユーザー設定取得
			me.GET("/preferences", s.handleGetPreferences())
			// ユーザー設定更新
			me.PUT("/preferences", s.handleUpdatePreferences())
			// オンボーディング完了
			me.PUT("/onboarding", s.handleCompleteOnboarding())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())

	if s.cfg.APIDocs {
		s.router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))))
	}
}

// healthResponse はヘルスチェックのJSONレスポンス構造。
type healthResponse struct {
	// Status は常に"healthy"。
	Status string `json:"status"`
	// Timestamp は応答時刻。
	Timestamp string `json:"timestamp"`
}

// handleHealth はヘルスチェックを返す。認証は不要。
//
//	@Summary		ヘルスチェック
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	healthResponse
//	@Router			/health [get]
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, healthResponse{
			Status:    "healthy",
			Timestamp: s.now().UTC().Format(time.RFC3339),
		})
	}
}
