package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/wordwise/internal/profile"
)

// swaggerDoc はdoc.jsonのうちテストで見る部分。
type swaggerDoc struct {
	Paths       map[string]map[string]json.RawMessage `json:"paths"`
	Definitions map[string]struct {
		Required   []string `json:"required"`
		Properties map[string]struct {
			Type      string   `json:"type"`
			Enum      []string `json:"enum"`
			MaxLength int      `json:"maxLength"`
		} `json:"properties"`
	} `json:"definitions"`
}

func fetchSwaggerDoc(t *testing.T, ts *testServer) swaggerDoc {
	t.Helper()

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc swaggerDoc
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	return doc
}

// TestSwaggerDoc は生成済みのSwaggerドキュメントがルーターと食い違っていないことを検証する。
func TestSwaggerDoc(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t, nil)
	doc := fetchSwaggerDoc(t, ts)

	t.Run("登録済みのルートとドキュメントのパスが一致すること", func(t *testing.T) {
		t.Parallel()

		var routes, documented []string
		for _, r := range ts.router.Routes() {
			if strings.HasPrefix(r.Path, "/swagger/") {
				continue
			}
			routes = append(routes, strings.ToLower(r.Method)+" "+r.Path)
		}
		for path, ops := range doc.Paths {
			for method := range ops {
				documented = append(documented, method+" "+path)
			}
		}
		sort.Strings(routes)
		sort.Strings(documented)
		assert.Equal(t, routes, documented, "swag initで再生成が必要")
	})

	t.Run("オンボーディングの制約がバリデーションと一致すること", func(t *testing.T) {
		t.Parallel()

		def, ok := doc.Definitions["api.onboardingRequest"]
		require.True(t, ok)
		assert.Equal(t, []string{"role"}, def.Required)
		assert.Equal(t,
			[]string{profile.RoleProductManager, profile.RoleSoftwareEngineer},
			def.Properties["role"].Enum)
		assert.Equal(t, profile.MaxPersonaLength, def.Properties["persona"].MaxLength)
	})

	t.Run("プロフィールのレスポンスにオンボーディング項目が載っていること", func(t *testing.T) {
		t.Parallel()

		props := doc.Definitions["api.profileResponse"].Properties
		assert.Equal(t, "string", props["role"].Type)
		assert.Equal(t, "string", props["persona"].Type)
		assert.Equal(t, "boolean", props["onboardingCompleted"].Type)
	})
}
