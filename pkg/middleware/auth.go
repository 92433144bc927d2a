package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/wordwise/internal/identity"
	"github.com/nao1215/wordwise/pkg/logging"
	"github.com/nao1215/wordwise/pkg/response"
)

// Authenticator はトークンから識別レコードを組み立てる認証ゲート。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (identity.Record, error)
}

// ctxKeyIdentity は識別レコードを保存するGinコンテキストのキー。
const ctxKeyIdentity = "identity"

// BearerAuth はAuthorizationヘッダーのベアラートークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに識別レコードを設定する。
// 失敗した場合はその場でリクエストを終了し、再試行しない。
func BearerAuth(gate Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="wordwise"`)
			response.Fail(c, http.StatusUnauthorized, identity.KindMissingToken.String(), "Bearer トークンが必要です")
			return
		}

		rec, err := gate.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			kind := identity.KindUnknown
			var f *identity.Failure
			if errors.As(err, &f) {
				kind = f.Kind
			}

			logging.FromContext(c.Request.Context()).Warn("認証に失敗しました",
				"kind", kind.String(),
				"err", err,
			)

			status := StatusForKind(kind)
			if status == http.StatusUnauthorized {
				c.Header("WWW-Authenticate",
					`Bearer error="invalid_token", error_description="`+kind.String()+`"`)
			}
			response.Fail(c, status, kind.String(), err.Error())
			return
		}

		c.Set(ctxKeyIdentity, rec)
		c.Next()
	}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。
// 認証スキーム名は大文字小文字を区別しない。
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// StatusForKind は認証失敗の分類をHTTPステータスに対応付ける。
// アカウントが存在しない場合のみ404、それ以外は401。
func StatusForKind(kind identity.Kind) int {
	if kind == identity.KindAccountNotFound {
		return http.StatusNotFound
	}
	return http.StatusUnauthorized
}

// GetIdentity はGinコンテキストから識別レコードを取得する。
// BearerAuthミドルウェアが事前に適用されている必要がある。
func GetIdentity(c *gin.Context) (identity.Record, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return identity.Record{}, false
	}
	rec, ok := v.(identity.Record)
	return rec, ok
}
