package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/wordwise/internal/identity"
	"github.com/nao1215/wordwise/internal/profile"
	"github.com/nao1215/wordwise/pkg/logging"
	"github.com/nao1215/wordwise/pkg/middleware"
	"github.com/nao1215/wordwise/pkg/response"
)

// preferencesBody はユーザー設定のJSON構造。
type preferencesBody struct {
	// Language はBCP 47形式の言語タグ。空なら"en-US"。
	Language string `json:"language" example:"ja-JP"`
}

// profileRequest はプロフィール作成・更新リクエストのJSON構造。
// 省略またはnullのフィールドは指定されなかったものとして扱う。
type profileRequest struct {
	// DisplayName は表示名。
	DisplayName *string `json:"display_name"`
	// Preferences はユーザー設定。
	Preferences *preferencesBody `json:"preferences"`
}

func (r profileRequest) preferences() *profile.Preferences {
	if r.Preferences == nil {
		return nil
	}
	return &profile.Preferences{Language: r.Preferences.Language}
}

// profileResponse はプロフィールのJSONレスポンス構造。
type profileResponse struct {
	// UID はサブジェクトID。
	UID string `json:"uid"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// DisplayName は表示名。未設定ならnull。
	DisplayName *string `json:"display_name"`
	// CreatedAt は作成日時（RFC 3339）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は最終更新日時（RFC 3339）。未更新ならnull。
	UpdatedAt *string `json:"updated_at"`
	// Preferences はユーザー設定。
	Preferences preferencesBody `json:"preferences"`
	// Role はオンボーディングで選んだロール。未設定ならnull。
	Role *string `json:"role"`
	// Persona はペルソナ説明。未設定ならnull。
	Persona *string `json:"persona"`
	// OnboardingCompleted はオンボーディングを終えたかどうか。
	OnboardingCompleted bool `json:"onboardingCompleted"`
}

// onboardingRequest はオンボーディングのJSONリクエスト構造。
type onboardingRequest struct {
	// Role はロール。
	Role string `json:"role" binding:"required,oneof='Product Manager' 'Software Engineer'" example:"Software Engineer"`
	// Persona はペルソナ説明。省略またはnullなら保存済みの値を変更しない。
	Persona *string `json:"persona" binding:"omitempty,max=1000"`
}

// toProfileResponse はドキュメントをレスポンス構造に変換する。
func toProfileResponse(doc profile.Document) profileResponse {
	res := profileResponse{
		UID:         doc.UID,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		CreatedAt:   formatTime(doc.CreatedAt),
		Preferences: preferencesBody{Language: doc.EffectivePreferences().Language},
		Role:        doc.Role,
		Persona:     doc.Persona,

		OnboardingCompleted: doc.OnboardingCompleted,
	}
	if doc.UpdatedAt != nil {
		updatedAt := formatTime(*doc.UpdatedAt)
		res.UpdatedAt = &updatedAt
	}
	return res
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// bindOptionalJSON はリクエストボディをバインドする。空のボディは{}として扱う。
func bindOptionalJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// bindingDetail はバインドの失敗をクライアント向けの説明に変換する。
func bindingDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "リクエストボディが不正です: " + err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.StructField() {
		case "Role":
			msgs = append(msgs, "ロールは "+profile.RoleProductManager+" か "+profile.RoleSoftwareEngineer+" から選択してください")
		case "Persona":
			msgs = append(msgs, fmt.Sprintf("ペルソナは%d文字以内で入力してください", profile.MaxPersonaLength))
		default:
			msgs = append(msgs, fe.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

// currentIdentity はBearerAuthが設定した識別レコードを取り出す。
// 取り出せない場合は500を返してfalseを返す。
func currentIdentity(c *gin.Context) (identity.Record, bool) {
	who, ok := middleware.GetIdentity(c)
	if !ok {
		logging.FromContext(c.Request.Context()).Error("識別レコードがコンテキストにありません")
		response.Fail(c, http.StatusInternalServerError, response.KindInternal, "内部サーバーエラーが発生しました")
		return identity.Record{}, false
	}
	return who, true
}

// handleGetProfile は認証済みユーザーのプロフィールを返す。
//
//	@Summary		プロフィール取得
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=profileResponse}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/v1/users/me [get]
func (s *Server) handleGetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := currentIdentity(c)
		if !ok {
			return
		}

		doc, err := s.profiles.Fetch(c.Request.Context(), who)
		if err != nil {
			s.fail(c, err, "プロフィールの取得")
			return
		}

		response.OK(c, http.StatusOK, toProfileResponse(doc), "プロフィールを取得しました")
	}
}

// handleCreateProfile は認証済みユーザーのプロフィールを作成する。
// 表示名を省略した場合は識別プロバイダの表示名を使う。
//
//	@Summary		プロフィール作成
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		profileRequest	false	"作成内容"
//	@Success		201		{object}	response.Envelope{data=profileResponse}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/v1/users/me [post]
func (s *Server) handleCreateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := currentIdentity(c)
		if !ok {
			return
		}

		var req profileRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			response.Fail(c, http.StatusBadRequest, response.KindBadRequest, "リクエストボディが不正です: "+err.Error())
			return
		}

		doc, err := s.profiles.Create(c.Request.Context(), who, profile.CreateRequest{
			DisplayName: req.DisplayName,
			Preferences: req.preferences(),
		})
		if err != nil {
			s.fail(c, err, "プロフィールの作成")
			return
		}

		response.OK(c, http.StatusCreated, toProfileResponse(doc), "プロフィールを作成しました")
	}
}

// handleUpdateProfile は指定されたフィールドだけを更新する。
//
//	@Summary		プロフィール更新
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		profileRequest	false	"更新内容"
//	@Success		200		{object}	response.Envelope{data=profileResponse}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/v1/users/me [put]
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := currentIdentity(c)
		if !ok {
			return
		}

		var req profileRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			response.Fail(c, http.StatusBadRequest, response.KindBadRequest, "リクエストボディが不正です: "+err.Error())
			return
		}

		doc, err := s.profiles.Update(c.Request.Context(), who, profile.Patch{
			DisplayName: req.DisplayName,
			Preferences: req.preferences(),
		})
		if err != nil {
			s.fail(c, err, "プロフィールの更新")
			return
		}

		response.OK(c, http.StatusOK, toProfileResponse(doc), "プロフィールを更新しました")
	}
}

// handleDeleteProfile はプロフィールを削除し、続けて識別プロバイダのアカウントを削除する。
//
//	@Summary		プロフィールとアカウントの削除
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/v1/users/me [delete]
func (s *Server) handleDeleteProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := currentIdentity(c)
		if !ok {
			return
		}

		if err := s.profiles.Delete(c.Request.Context(), who); err != nil {
			// ドキュメントが無くても削除は成功扱いのため、ここに来るのは内部エラーだけ
			s.fail(c, err, "ユーザーアカウントの削除")
			return
		}

		logging.FromContext(c.Request.Context()).Info("ユーザーアカウントを削除しました", "uid", who.SubjectID)
		response.OK(c, http.StatusOK, nil, "ユーザーアカウントを削除しました")
	}
}

// handleGetPreferences はユーザー設定を返す。保存されていなければ既定値を返す。
//
//	@Summary		ユーザー設定取得
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=preferencesBody}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/v1/users/me/preferences [get]
func (s *Server) handleGetPreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := currentIdentity(c)
		if !ok {
			return
		}

		prefs, err := s.profiles.Preferences(c.Request.Context(), who)
		if err != nil {
			s.fail(c, err, "ユーザー設定の取得")
			return
		}

		response.OK(c, http.StatusOK, preferencesBody{Language: prefs.Language}, "ユーザー設定を取得しました")
	}
}

// handleUpdatePreferences はユーザー設定全体を置き換える。
//
//	@Summary		ユーザー設定更新
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		preferencesBody	true	"ユーザー設定"
//	@Success		200		{object}	response.Envelope{data=preferencesBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/v1/users/me/preferences [put]
func (s *Server) handleUpdatePreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := currentIdentity(c)
		if !ok {
			return
		}

		var req preferencesBody
		if err := c.ShouldBindJSON(&req); err != nil {
			detail := "リクエストボディが不正です: " + err.Error()
			if errors.Is(err, io.EOF) {
				detail = "リクエストボディが必要です"
			}
			response.Fail(c, http.StatusBadRequest, response.KindBadRequest, detail)
			return
		}

		prefs, err := s.profiles.SetPreferences(c.Request.Context(), who, profile.Preferences{Language: req.Language})
		if err != nil {
			s.fail(c, err, "ユーザー設定の更新")
			return
		}

		response.OK(c, http.StatusOK, preferencesBody{Language: prefs.Language}, "ユーザー設定を更新しました")
	}
}

// handleCompleteOnboarding はロールとペルソナを保存し、オンボーディング完了の印を付ける。
//
//	@Summary		オンボーディング完了
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		onboardingRequest	true	"オンボーディング内容"
//	@Success		200		{object}	response.Envelope{data=profileResponse}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/v1/users/me/onboarding [put]
func (s *Server) handleCompleteOnboarding() gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := currentIdentity(c)
		if !ok {
			return
		}

		var req onboardingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			detail := bindingDetail(err)
			if errors.Is(err, io.EOF) {
				detail = "リクエストボディが必要です"
			}
			response.Fail(c, http.StatusBadRequest, response.KindBadRequest, detail)
			return
		}

		doc, err := s.profiles.CompleteOnboarding(c.Request.Context(), who, profile.Onboarding{
			Role:    req.Role,
			Persona: req.Persona,
		})
		if err != nil {
			s.fail(c, err, "オンボーディング情報の保存")
			return
		}

		response.OK(c, http.StatusOK, toProfileResponse(doc), "オンボーディングを完了しました")
	}
}
