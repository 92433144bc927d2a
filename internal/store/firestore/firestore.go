// Package firestore はCloud Firestoreをバックエンドとするプロフィールストアを提供する。
//
// ドキュメントは1つのコレクション配下に、識別レコードのサブジェクトIDを
// ドキュメントIDとして保存する。タイムスタンプはサーバー時刻で付与する。
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nao1215/wordwise/internal/profile"
)

// DefaultCollection はプロフィールを保存するコレクション名の既定値。
const DefaultCollection = "users"

// Store はFirestoreによるprofile.Storeの実装。
type Store struct {
	// client はFirestoreクライアント。Closeは呼び出し側の責務。
	client *firestore.Client
	// collection はプロフィールのコレクション名。
	collection string
}

var _ profile.Store = (*Store)(nil)

// New は新しいストアを生成する。collectionが空なら"users"を使う。
func New(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection}
}

// document はFirestore上のフィールド構成。
type document struct {
	UID         string       `firestore:"uid"`
	Email       string       `firestore:"email"`
	DisplayName *string      `firestore:"display_name"`
	CreatedAt   time.Time    `firestore:"created_at,serverTimestamp"`
	UpdatedAt   *time.Time   `firestore:"updated_at"`
	Preferences *preferences `firestore:"preferences,omitempty"`
	// オンボーディング項目は既存クライアントが書き込むキャメルケースのフィールド名に合わせる
	Role                *string `firestore:"role,omitempty"`
	Persona             *string `firestore:"persona,omitempty"`
	OnboardingCompleted bool    `firestore:"onboardingCompleted,omitempty"`
}

type preferences struct {
	Language string `firestore:"language"`
}

func (d document) toProfile() profile.Document {
	doc := profile.Document{
		UID:         d.UID,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		CreatedAt:   d.CreatedAt.UTC(),
		Role:        d.Role,
		Persona:     d.Persona,

		OnboardingCompleted: d.OnboardingCompleted,
	}
	if d.UpdatedAt != nil {
		t := d.UpdatedAt.UTC()
		doc.UpdatedAt = &t
	}
	if d.Preferences != nil {
		doc.Preferences = &profile.Preferences{Language: d.Preferences.Language}
	}
	return doc
}

func (s *Store) ref(uid string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(uid)
}

// Get はuidのドキュメントを返す。
func (s *Store) Get(ctx context.Context, uid string) (profile.Document, error) {
	snap, err := s.ref(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return profile.Document{}, profile.ErrNotFound
		}
		return profile.Document{}, fmt.Errorf("ドキュメントの読み込みに失敗: %w", err)
	}

	var d document
	if err := snap.DataTo(&d); err != nil {
		return profile.Document{}, fmt.Errorf("ドキュメントのデコードに失敗: %w", err)
	}
	if d.UID == "" {
		d.UID = snap.Ref.ID
	}
	return d.toProfile(), nil
}

// Create はドキュメントが存在しない場合に限り作成する。
// DocumentRef.Createは既存ドキュメントがあるとAlreadyExistsで失敗する。
func (s *Store) Create(ctx context.Context, nd profile.NewDocument) (profile.Document, error) {
	prefs := nd.Preferences.WithDefaults()
	d := document{
		UID:         nd.UID,
		Email:       nd.Email,
		DisplayName: nd.DisplayName,
		Preferences: &preferences{Language: prefs.Language},
	}

	if _, err := s.ref(nd.UID).Create(ctx, d); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return profile.Document{}, profile.ErrAlreadyExists
		}
		return profile.Document{}, fmt.Errorf("ドキュメントの作成に失敗: %w", err)
	}

	// created_atはサーバー時刻のため読み直す
	return s.Get(ctx, nd.UID)
}

// Update はパッチで指定されたフィールドだけを書き換える。
// ドキュメントが無い場合Firestoreは NotFound を返し、新規作成はしない。
func (s *Store) Update(ctx context.Context, uid string, patch profile.Patch) (profile.Document, error) {
	if patch.IsEmpty() {
		return s.Get(ctx, uid)
	}

	if _, err := s.ref(uid).Update(ctx, updatesFor(patch)); err != nil {
		if status.Code(err) == codes.NotFound {
			return profile.Document{}, profile.ErrNotFound
		}
		return profile.Document{}, fmt.Errorf("ドキュメントの更新に失敗: %w", err)
	}
	return s.Get(ctx, uid)
}

// updatesFor はパッチをFirestoreのフィールド更新に変換する。
func updatesFor(patch profile.Patch) []firestore.Update {
	var updates []firestore.Update
	if patch.DisplayName != nil {
		updates = append(updates, firestore.Update{Path: "display_name", Value: *patch.DisplayName})
	}
	if patch.Preferences != nil {
		prefs := patch.Preferences.WithDefaults()
		updates = append(updates, firestore.Update{
			Path:  "preferences",
			Value: map[string]any{"language": prefs.Language},
		})
	}
	if ob := patch.Onboarding; ob != nil {
		updates = append(updates,
			firestore.Update{Path: "role", Value: ob.Role},
			firestore.Update{Path: "onboardingCompleted", Value: true},
		)
		if ob.Persona != nil {
			updates = append(updates, firestore.Update{Path: "persona", Value: *ob.Persona})
		}
	}
	if len(updates) > 0 {
		updates = append(updates, firestore.Update{Path: "updated_at", Value: firestore.ServerTimestamp})
	}
	return updates
}

// Delete はドキュメントを削除する。存在しなくてもエラーにしない。
func (s *Store) Delete(ctx context.Context, uid string) error {
	if _, err := s.ref(uid).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("ドキュメントの削除に失敗: %w", err)
	}
	return nil
}

