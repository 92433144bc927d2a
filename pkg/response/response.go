// Package response はAPIレスポンスの共通エンベロープを提供する。
//
// 成功時は {"data": ..., "message": ..., "error": null}、
// 失敗時は {"data": null, "message": ..., "error": {"status": ..., "kind": ..., "detail": ...}}
// の形で返す。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope はすべてのAPIレスポンスの共通形式。
type Envelope struct {
	// Data は成功時のペイロード。失敗時はnull。
	Data any `json:"data"`
	// Message は人が読むための説明。
	Message string `json:"message"`
	// Error は失敗時の詳細。成功時はnull。
	Error *ErrorBody `json:"error"`
}

// ErrorBody は失敗の詳細。
type ErrorBody struct {
	// Status はHTTPステータスコード。
	Status int `json:"status"`
	// Kind は機械可読な失敗の分類。
	Kind string `json:"kind"`
	// Detail は失敗の説明。
	Detail string `json:"detail"`
}

// 失敗の分類名。認証の失敗はidentity.Kindの名前を使う。
const (
	KindBadRequest = "bad_request"
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindInternal   = "internal_error"
)

// OK はステータスとデータを成功エンベロープで返す。
func OK(c *gin.Context, status int, data any, message string) {
	noCache(c)
	c.JSON(status, Envelope{Data: data, Message: message})
}

// Fail は失敗エンベロープを返し、以降のハンドラを中断する。
func Fail(c *gin.Context, status int, kind, detail string) {
	noCache(c)
	c.AbortWithStatusJSON(status, Envelope{
		Message: messageFor(status),
		Error: &ErrorBody{
			Status: status,
			Kind:   kind,
			Detail: detail,
		},
	})
}

// noCache はプロフィールがキャッシュされないようにヘッダーを設定する。
func noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

func messageFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエストが不正です"
	case http.StatusUnauthorized:
		return "認証に失敗しました"
	case http.StatusNotFound:
		return "リソースが見つかりません"
	case http.StatusConflict:
		return "リソースは既に存在します"
	default:
		return "内部サーバーエラーが発生しました"
	}
}
