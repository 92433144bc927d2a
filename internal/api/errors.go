package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/wordwise/internal/profile"
	"github.com/nao1215/wordwise/pkg/logging"
	"github.com/nao1215/wordwise/pkg/response"
)

// statusFor はユースケースのエラーをHTTPステータスと失敗の分類に対応付ける。
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound, response.KindNotFound
	case errors.Is(err, profile.ErrAlreadyExists):
		return http.StatusConflict, response.KindConflict
	case errors.Is(err, profile.ErrInvalid):
		return http.StatusBadRequest, response.KindBadRequest
	default:
		return http.StatusInternalServerError, response.KindInternal
	}
}

// fail はエラーをエンベロープで返す。内部エラーはログに出力し、
// クライアントには操作名と原因を含む説明を返す。
func (s *Server) fail(c *gin.Context, err error, action string) {
	status, kind := statusFor(err)

	var detail string
	switch kind {
	case response.KindNotFound:
		detail = "ユーザープロフィールが見つかりません"
	case response.KindConflict:
		detail = "ユーザープロフィールは既に存在します"
	case response.KindBadRequest:
		detail = err.Error()
	default:
		logging.FromContext(c.Request.Context()).Error(action+"に失敗しました", "err", err)
		detail = action + "に失敗しました: " + err.Error()
	}

	response.Fail(c, status, kind, detail)
}
