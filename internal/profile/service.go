package profile

import (
	"context"
	"fmt"

	"github.com/nao1215/wordwise/internal/identity"
)

// AccountRemover は識別プロバイダ上のアカウントを削除する。
type AccountRemover interface {
	DeleteAccount(ctx context.Context, uid string) error
}

// CreateRequest はプロフィール作成時にクライアントが指定できる値。
type CreateRequest struct {
	// DisplayName は表示名。空なら識別レコードの表示名を使う。
	DisplayName *string
	// Preferences はユーザー設定。nilなら既定値を使う。
	Preferences *Preferences
}

// Service はプロフィールのユースケースを実装する。
// すべての操作は識別レコードのサブジェクトIDをキーとする1件のドキュメントだけを扱う。
type Service struct {
	// store はプロフィールドキュメントの永続化先。
	store Store
	// accounts は識別プロバイダ上のアカウント削除を行う。
	accounts AccountRemover
}

// NewService は新しいプロフィールサービスを生成する。
func NewService(store Store, accounts AccountRemover) *Service {
	return &Service{store: store, accounts: accounts}
}

// Fetch はプロフィールを取得する。存在しなければErrNotFoundを返す。
func (s *Service) Fetch(ctx context.Context, who identity.Record) (Document, error) {
	doc, err := s.store.Get(ctx, who.SubjectID)
	if err != nil {
		return Document{}, fmt.Errorf("プロフィールの取得に失敗: %w", err)
	}
	return doc, nil
}

// Create はプロフィールを作成する。既に存在すればErrAlreadyExistsを返す。
func (s *Service) Create(ctx context.Context, who identity.Record, req CreateRequest) (Document, error) {
	doc, err := s.store.Create(ctx, newDocument(who, req))
	if err != nil {
		return Document{}, fmt.Errorf("プロフィールの作成に失敗: %w", err)
	}
	return doc, nil
}

// newDocument は識別レコードとリクエストから作成するドキュメントを組み立てる。
func newDocument(who identity.Record, req CreateRequest) NewDocument {
	doc := NewDocument{
		UID:         who.SubjectID,
		Email:       who.Email,
		Preferences: DefaultPreferences(),
	}

	switch {
	case req.DisplayName != nil && *req.DisplayName != "":
		name := *req.DisplayName
		doc.DisplayName = &name
	case who.DisplayName != "":
		name := who.DisplayName
		doc.DisplayName = &name
	}

	if req.Preferences != nil {
		doc.Preferences = req.Preferences.WithDefaults()
	}
	return doc
}

// Update はパッチで指定されたフィールドだけを更新する。
// パッチが空の場合はストアに書き込まず現在の内容を返す。
func (s *Service) Update(ctx context.Context, who identity.Record, patch Patch) (Document, error) {
	if patch.IsEmpty() {
		return s.Fetch(ctx, who)
	}

	doc, err := s.store.Update(ctx, who.SubjectID, patch)
	if err != nil {
		return Document{}, fmt.Errorf("プロフィールの更新に失敗: %w", err)
	}
	return doc, nil
}

// Delete はプロフィールを削除し、続けて識別プロバイダ上のアカウントを削除する。
// ドキュメントが存在しなくてもアカウントの削除は必ず試みる。
// 2段階目が失敗しても1段階目は巻き戻さない。
func (s *Service) Delete(ctx context.Context, who identity.Record) error {
	if err := s.store.Delete(ctx, who.SubjectID); err != nil {
		return fmt.Errorf("プロフィールの削除に失敗: %w", err)
	}
	if err := s.accounts.DeleteAccount(ctx, who.SubjectID); err != nil {
		return fmt.Errorf("アカウントの削除に失敗: %w", err)
	}
	return nil
}

// Preferences はユーザー設定を取得する。保存されていなければ既定値を返す。
func (s *Service) Preferences(ctx context.Context, who identity.Record) (Preferences, error) {
	doc, err := s.Fetch(ctx, who)
	if err != nil {
		return Preferences{}, err
	}
	return doc.EffectivePreferences(), nil
}

// SetPreferences はユーザー設定全体を置き換える。
func (s *Service) SetPreferences(ctx context.Context, who identity.Record, prefs Preferences) (Preferences, error) {
	prefs = prefs.WithDefaults()
	doc, err := s.store.Update(ctx, who.SubjectID, Patch{Preferences: &prefs})
	if err != nil {
		return Preferences{}, fmt.Errorf("ユーザー設定の更新に失敗: %w", err)
	}
	return doc.EffectivePreferences(), nil
}

// CompleteOnboarding はロールとペルソナを保存し、オンボーディング完了の印を付ける。
// 表示名とユーザー設定は変更しない。
func (s *Service) CompleteOnboarding(ctx context.Context, who identity.Record, ob Onboarding) (Document, error) {
	if err := ob.Validate(); err != nil {
		return Document{}, err
	}
	doc, err := s.store.Update(ctx, who.SubjectID, Patch{Onboarding: &ob})
	if err != nil {
		return Document{}, fmt.Errorf("オンボーディング情報の保存に失敗: %w", err)
	}
	return doc, nil
}
