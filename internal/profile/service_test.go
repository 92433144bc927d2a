package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/wordwise/internal/identity"
)

// memStore はテスト用のインメモリストア。書き込み回数を記録する。
type memStore struct {
	mu     sync.Mutex
	docs   map[string]Document
	clock  time.Time
	writes int
	err    error
}

func newMemStore() *memStore {
	return &memStore{
		docs:  map[string]Document{},
		clock: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) Get(_ context.Context, uid string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Document{}, m.err
	}
	doc, ok := m.docs[uid]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (m *memStore) Create(_ context.Context, nd NewDocument) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Document{}, m.err
	}
	if _, ok := m.docs[nd.UID]; ok {
		return Document{}, ErrAlreadyExists
	}
	prefs := nd.Preferences
	doc := Document{
		UID:         nd.UID,
		Email:       nd.Email,
		DisplayName: nd.DisplayName,
		CreatedAt:   m.tick(),
		Preferences: &prefs,
	}
	m.docs[nd.UID] = doc
	m.writes++
	return doc, nil
}

func (m *memStore) Update(_ context.Context, uid string, p Patch) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Document{}, m.err
	}
	doc, ok := m.docs[uid]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc = p.Apply(doc, m.tick())
	m.docs[uid] = doc
	m.writes++
	return doc, nil
}

func (m *memStore) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.docs, uid)
	m.writes++
	return nil
}

// fakeAccounts はテスト用のアカウント削除先。
type fakeAccounts struct {
	deleted []string
	err     error
}

func (f *fakeAccounts) DeleteAccount(_ context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return f.err
}

var u1 = identity.Record{SubjectID: "u1", Email: "u1@x.com", EmailVerified: true, DisplayName: "Provider Name"}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	t.Run("空のリクエストでは識別レコードと既定値から作成されること", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		doc, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		assert.Equal(t, "u1", doc.UID)
		assert.Equal(t, "u1@x.com", doc.Email)
		require.NotNil(t, doc.DisplayName)
		assert.Equal(t, "Provider Name", *doc.DisplayName)
		assert.Equal(t, "en-US", doc.EffectivePreferences().Language)
		assert.False(t, doc.CreatedAt.IsZero())
		assert.Nil(t, doc.UpdatedAt)
	})

	t.Run("リクエストの値が優先されること", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		doc, err := svc.Create(context.Background(), u1, CreateRequest{
			DisplayName: ptr("Chosen"),
			Preferences: &Preferences{Language: "ja-JP"},
		})
		require.NoError(t, err)

		assert.Equal(t, "Chosen", *doc.DisplayName)
		assert.Equal(t, "ja-JP", doc.Preferences.Language)
	})

	t.Run("空文字列の表示名は識別レコードの表示名にフォールバックすること", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		doc, err := svc.Create(context.Background(), u1, CreateRequest{DisplayName: ptr("")})
		require.NoError(t, err)
		assert.Equal(t, "Provider Name", *doc.DisplayName)
	})

	t.Run("表示名がどこにも無ければnilになること", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		doc, err := svc.Create(context.Background(), identity.Record{SubjectID: "u2"}, CreateRequest{})
		require.NoError(t, err)
		assert.Nil(t, doc.DisplayName)
	})

	t.Run("2回目の作成はErrAlreadyExistsになりドキュメントは変わらないこと", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		svc := NewService(store, &fakeAccounts{})
		first, err := svc.Create(context.Background(), u1, CreateRequest{DisplayName: ptr("First")})
		require.NoError(t, err)

		_, err = svc.Create(context.Background(), u1, CreateRequest{DisplayName: ptr("Second")})
		require.ErrorIs(t, err, ErrAlreadyExists)

		got, err := svc.Fetch(context.Background(), u1)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	})
}

func TestServiceFetch(t *testing.T) {
	t.Parallel()

	t.Run("存在しなければErrNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.Fetch(context.Background(), u1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("取得ではupdated_atが変わらないこと", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		svc := NewService(store, &fakeAccounts{})
		_, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		doc, err := svc.Fetch(context.Background(), u1)
		require.NoError(t, err)
		assert.Nil(t, doc.UpdatedAt)
		assert.Equal(t, 1, store.writes)
	})

	t.Run("他のサブジェクトのドキュメントは見えないこと", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		_, err = svc.Fetch(context.Background(), identity.Record{SubjectID: "u2"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceUpdate(t *testing.T) {
	t.Parallel()

	t.Run("存在しなければErrNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.Update(context.Background(), u1, Patch{DisplayName: ptr("x")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("空のパッチはストアに書き込まないこと", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		svc := NewService(store, &fakeAccounts{})
		created, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		got, err := svc.Update(context.Background(), u1, Patch{})
		require.NoError(t, err)
		assert.Equal(t, created, got)
		assert.Equal(t, 1, store.writes)
	})

	t.Run("空のパッチでも存在しなければErrNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.Update(context.Background(), u1, Patch{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("更新のたびにupdated_atが変わること", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		first, err := svc.Update(context.Background(), u1, Patch{DisplayName: ptr("A")})
		require.NoError(t, err)
		second, err := svc.Update(context.Background(), u1, Patch{DisplayName: ptr("B")})
		require.NoError(t, err)

		require.NotNil(t, first.UpdatedAt)
		require.NotNil(t, second.UpdatedAt)
		assert.True(t, second.UpdatedAt.After(*first.UpdatedAt))
		assert.Equal(t, "B", *second.DisplayName)
	})
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	t.Run("ドキュメントとアカウントの両方を削除すること", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		accounts := &fakeAccounts{}
		svc := NewService(store, accounts)
		_, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(context.Background(), u1))

		_, err = svc.Fetch(context.Background(), u1)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, []string{"u1"}, accounts.deleted)
	})

	t.Run("ドキュメントが無くてもアカウント削除を試みて成功すること", func(t *testing.T) {
		t.Parallel()

		accounts := &fakeAccounts{}
		svc := NewService(newMemStore(), accounts)

		require.NoError(t, svc.Delete(context.Background(), u1))
		assert.Equal(t, []string{"u1"}, accounts.deleted)
	})

	t.Run("アカウント削除の失敗はエラーになりドキュメントは戻らないこと", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		accounts := &fakeAccounts{err: identity.ErrAccountNotFound}
		svc := NewService(store, accounts)
		_, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		err = svc.Delete(context.Background(), u1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)

		_, err = svc.Fetch(context.Background(), u1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ストアの失敗ではアカウントを削除しないこと", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.err = errors.New("unavailable")
		accounts := &fakeAccounts{}
		svc := NewService(store, accounts)

		require.Error(t, svc.Delete(context.Background(), u1))
		assert.Empty(t, accounts.deleted)
	})
}

func TestServicePreferences(t *testing.T) {
	t.Parallel()

	t.Run("存在しなければErrNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.Preferences(context.Background(), u1)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = svc.SetPreferences(context.Background(), u1, Preferences{Language: "fr-FR"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("preferencesが無いドキュメントは既定値を返すこと", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.docs["u1"] = Document{UID: "u1", Email: "u1@x.com", CreatedAt: time.Now()}
		svc := NewService(store, &fakeAccounts{})

		prefs, err := svc.Preferences(context.Background(), u1)
		require.NoError(t, err)
		assert.Equal(t, Preferences{Language: "en-US"}, prefs)
	})

	t.Run("設定した値が取得できること", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		set, err := svc.SetPreferences(context.Background(), u1, Preferences{Language: "fr-FR"})
		require.NoError(t, err)
		assert.Equal(t, "fr-FR", set.Language)

		got, err := svc.Preferences(context.Background(), u1)
		require.NoError(t, err)
		assert.Equal(t, Preferences{Language: "fr-FR"}, got)

		doc, err := svc.Fetch(context.Background(), u1)
		require.NoError(t, err)
		assert.NotNil(t, doc.UpdatedAt)
	})
}

func TestServiceCompleteOnboarding(t *testing.T) {
	t.Parallel()

	t.Run("ロールを保存して完了フラグを立てること", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)

		doc, err := svc.CompleteOnboarding(context.Background(), u1, Onboarding{Role: RoleSoftwareEngineer, Persona: ptr("Go")})
		require.NoError(t, err)
		assert.Equal(t, RoleSoftwareEngineer, *doc.Role)
		assert.Equal(t, "Go", *doc.Persona)
		assert.True(t, doc.OnboardingCompleted)
	})

	t.Run("不正な入力はストアに書き込まずErrInvalidを返すこと", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		svc := NewService(store, &fakeAccounts{})
		_, err := svc.Create(context.Background(), u1, CreateRequest{})
		require.NoError(t, err)
		writes := store.writes

		_, err = svc.CompleteOnboarding(context.Background(), u1, Onboarding{Role: "CEO"})
		require.ErrorIs(t, err, ErrInvalid)
		assert.Equal(t, writes, store.writes)
	})

	t.Run("存在しなければErrNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		svc := NewService(newMemStore(), &fakeAccounts{})
		_, err := svc.CompleteOnboarding(context.Background(), u1, Onboarding{Role: RoleProductManager})
		require.ErrorIs(t, err, ErrNotFound)
	})
}
