package profile

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// DefaultLanguage はpreferences.languageの既定値。
const DefaultLanguage = "en-US"

var (
	// ErrNotFound はプロフィールドキュメントが存在しないことを表す。
	ErrNotFound = errors.New("profile: document not found")
	// ErrAlreadyExists はプロフィールドキュメントが既に存在することを表す。
	ErrAlreadyExists = errors.New("profile: document already exists")
	// ErrInvalid は入力値が制約を満たさないことを表す。
	ErrInvalid = errors.New("profile: invalid input")
)

// オンボーディングで選べるロール。
const (
	RoleProductManager   = "Product Manager"
	RoleSoftwareEngineer = "Software Engineer"
)

// MaxPersonaLength はペルソナ説明の最大文字数。
const MaxPersonaLength = 1000

// Onboarding はオンボーディングで入力する内容。
type Onboarding struct {
	// Role はロール。RoleProductManagerかRoleSoftwareEngineerのどちらか。
	Role string
	// Persona はペルソナ説明。nilなら保存済みの値を変更しない。
	Persona *string
}

// Validate はロールとペルソナの制約を検証する。
func (o Onboarding) Validate() error {
	switch o.Role {
	case RoleProductManager, RoleSoftwareEngineer:
	default:
		return fmt.Errorf("%w: ロール %q は選択できません", ErrInvalid, o.Role)
	}
	if o.Persona != nil && utf8.RuneCountInString(*o.Persona) > MaxPersonaLength {
		return fmt.Errorf("%w: ペルソナは%d文字以内で入力してください", ErrInvalid, MaxPersonaLength)
	}
	return nil
}

// Preferences はユーザー設定。
type Preferences struct {
	// Language は表示・校正に使う言語タグ。
	Language string `json:"language"`
}

// DefaultPreferences は既定のユーザー設定を返す。
func DefaultPreferences() Preferences {
	return Preferences{Language: DefaultLanguage}
}

// WithDefaults は未設定の項目に既定値を補った設定を返す。
func (p Preferences) WithDefaults() Preferences {
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	return p
}

// Document はストアに保存されるプロフィールドキュメント。
type Document struct {
	// UID は所有者のサブジェクトID。ドキュメントのキーと一致する。
	UID string
	// Email は作成時点の識別レコードのメールアドレス。
	Email string
	// DisplayName は表示名。未設定ならnil。
	DisplayName *string
	// CreatedAt は作成時にストアが付与した日時。以後変更されない。
	CreatedAt time.Time
	// UpdatedAt は最後の更新時にストアが付与した日時。未更新ならnil。
	UpdatedAt *time.Time
	// Preferences は保存されているユーザー設定。フィールド自体が無ければnil。
	Preferences *Preferences
	// Role はオンボーディングで選んだロール。未設定ならnil。
	Role *string
	// Persona はペルソナ説明。未設定ならnil。
	Persona *string
	// OnboardingCompleted はオンボーディングを終えたかどうか。
	OnboardingCompleted bool
}

// EffectivePreferences は既定値を補ったユーザー設定を返す。
func (d Document) EffectivePreferences() Preferences {
	if d.Preferences == nil {
		return DefaultPreferences()
	}
	return d.Preferences.WithDefaults()
}

// NewDocument は作成するプロフィールの内容。CreatedAtはストアが付与する。
type NewDocument struct {
	// UID は所有者のサブジェクトID。
	UID string
	// Email はメールアドレス。
	Email string
	// DisplayName は表示名。
	DisplayName *string
	// Preferences はユーザー設定。
	Preferences Preferences
}

// Patch はプロフィールの部分更新。nilのフィールドは変更しない。
type Patch struct {
	// DisplayName は新しい表示名。
	DisplayName *string
	// Preferences は新しいユーザー設定。サブオブジェクト全体を置き換える。
	Preferences *Preferences
	// Onboarding はオンボーディングの入力。適用するとOnboardingCompletedがtrueになる。
	Onboarding *Onboarding
}

// IsEmpty は変更するフィールドが1つも無いかどうかを返す。
func (p Patch) IsEmpty() bool {
	return p.DisplayName == nil && p.Preferences == nil && p.Onboarding == nil
}

// Apply はdocにパッチを適用した新しいドキュメントを返す。
// 変更があればUpdatedAtにnowを設定する。CreatedAtとUIDは変更しない。
func (p Patch) Apply(doc Document, now time.Time) Document {
	if p.IsEmpty() {
		return doc
	}

	out := doc
	if p.DisplayName != nil {
		name := *p.DisplayName
		out.DisplayName = &name
	}
	if p.Preferences != nil {
		prefs := p.Preferences.WithDefaults()
		out.Preferences = &prefs
	}
	if p.Onboarding != nil {
		role := p.Onboarding.Role
		out.Role = &role
		if p.Onboarding.Persona != nil {
			persona := *p.Onboarding.Persona
			out.Persona = &persona
		}
		out.OnboardingCompleted = true
	}
	stamped := now
	out.UpdatedAt = &stamped
	return out
}

// Store はプロフィールドキュメントの永続化先。
// 実装は複数のリクエストから並行に呼ばれても安全でなければならない。
type Store interface {
	// Get はuidのドキュメントを返す。存在しなければErrNotFoundを返す。
	Get(ctx context.Context, uid string) (Document, error)
	// Create はドキュメントが存在しない場合に限り作成し、作成後の内容を返す。
	// 既に存在すればErrAlreadyExistsを返す。判定と書き込みは不可分に行う。
	Create(ctx context.Context, doc NewDocument) (Document, error)
	// Update は空でないパッチを適用し、更新後の内容を返す。
	// 存在しなければErrNotFoundを返す。
	Update(ctx context.Context, uid string, patch Patch) (Document, error)
	// Delete はドキュメントを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, uid string) error
}
