package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/wordwise/pkg/logging"
	"github.com/nao1215/wordwise/pkg/response"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にスタックトレースをログに出力し、500エラーを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logging.FromContext(c.Request.Context()).Error("パニックから回復しました",
					"panic", r,
					"stack", string(debug.Stack()),
				)
				response.Fail(c, http.StatusInternalServerError, response.KindInternal, "内部サーバーエラーが発生しました")
			}
		}()
		c.Next()
	}
}
