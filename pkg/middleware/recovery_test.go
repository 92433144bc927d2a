package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/wordwise/internal/identity"
	"github.com/nao1215/wordwise/pkg/response"
)

// setupPanickingRouter はハンドラーがpanicするプロフィールルートを持つルーターを生成する。
// ログはJSONでbufに書き出す。
func setupPanickingRouter(buf *syncBuffer, panicValue any) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(slog.New(slog.NewJSONHandler(buf, nil))))
	router.Use(Recovery())

	me := router.Group("/v1/users/me")
	me.Use(BearerAuth(&fakeGate{rec: identity.Record{SubjectID: "u1"}}))
	me.GET("", func(c *gin.Context) {
		response.OK(c, http.StatusOK, gin.H{"uid": "u1"}, "プロフィールを取得しました")
	})
	me.PUT("", func(_ *gin.Context) {
		panic(panicValue)
	})
	return router
}

// TestRecovery はRecoveryミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("パニックはリクエストID付きの500エンベロープになりログに記録されること", func(t *testing.T) {
		t.Parallel()

		buf := &syncBuffer{}
		router := setupPanickingRouter(buf, "nil map への書き込み")

		req := httptest.NewRequest(http.MethodPut, "/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		req.Header.Set(HeaderRequestID, "req-panic-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if got := w.Header().Get(HeaderRequestID); got != "req-panic-1" {
			t.Errorf("%s = %q, want %q", HeaderRequestID, got, "req-panic-1")
		}
		if got := w.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("Cache-Control = %q, want %q", got, "no-store")
		}

		body := decodeEnvelope(t, w)
		want := response.ErrorBody{
			Status: http.StatusInternalServerError,
			Kind:   response.KindInternal,
			Detail: "内部サーバーエラーが発生しました",
		}
		if body.Error == nil || *body.Error != want {
			t.Errorf("error = %+v, want %+v", body.Error, want)
		}
		if body.Data != nil {
			t.Errorf("data = %v, want nil", body.Data)
		}

		var recovered, access map[string]any
		for _, line := range buf.lines(t) {
			switch line["msg"] {
			case "パニックから回復しました":
				recovered = line
			case "http_request":
				access = line
			}
		}
		if recovered == nil {
			t.Fatal("パニックのログが出力されていない")
		}
		if recovered["req_id"] != "req-panic-1" || recovered["panic"] != "nil map への書き込み" {
			t.Errorf("パニックのログ = %v", recovered)
		}
		if s, _ := recovered["stack"].(string); s == "" {
			t.Error("スタックトレースがログに無い")
		}
		if access == nil || access["level"] != "ERROR" || access["status"] != float64(http.StatusInternalServerError) {
			t.Errorf("アクセスログ = %v, ERRORレベルで500が記録されるべき", access)
		}
	})

	t.Run("error型のパニック値でもエンベロープで応答すること", func(t *testing.T) {
		t.Parallel()

		router := setupPanickingRouter(&syncBuffer{}, errors.New("store is nil"))

		req := httptest.NewRequest(http.MethodPut, "/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if w.Header().Get(HeaderRequestID) == "" {
			t.Errorf("%sが生成されていない", HeaderRequestID)
		}
		if body := decodeEnvelope(t, w); body.Error == nil || body.Error.Kind != response.KindInternal {
			t.Errorf("error = %+v, kind %sが返るべき", body.Error, response.KindInternal)
		}
	})

	t.Run("パニック後も同じルーターで次のリクエストを処理できること", func(t *testing.T) {
		t.Parallel()

		router := setupPanickingRouter(&syncBuffer{}, "boom")

		put := httptest.NewRequest(http.MethodPut, "/v1/users/me", nil)
		put.Header.Set("Authorization", "Bearer good-token")
		router.ServeHTTP(httptest.NewRecorder(), put)

		get := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
		get.Header.Set("Authorization", "Bearer good-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, get)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if body := decodeEnvelope(t, w); body.Error != nil || body.Message != "プロフィールを取得しました" {
			t.Errorf("envelope = %+v", body)
		}
	})
}
