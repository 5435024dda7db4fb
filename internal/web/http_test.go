package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winspan/rewritedns/internal/rewrite"
)

const testToken = "secret"

type failingPersister struct{}

func (failingPersister) LoadRules(context.Context) ([]rewrite.Rule, error) { return nil, nil }
func (failingPersister) SaveRules(context.Context, []rewrite.Rule) error {
	return errors.New("disk full")
}

func newTestAPI(t *testing.T, rules ...rewrite.Rule) (*rewrite.Store, http.Handler) {
	t.Helper()

	store := rewrite.NewStore(nil, zerolog.Nop())
	for _, r := range rules {
		require.NoError(t, store.Add(context.Background(), r))
	}
	return store, NewRouter(store, Options{Token: testToken, MetricsPath: "/metrics"}, zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	_, h := newTestAPI(t, rewrite.Rule{Domain: "nas.lan", Answer: "192.168.1.10"})

	rec := do(t, h, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"rules":1}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/control/rewrite/list", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/control/rewrite/list", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/control/rewrite/list", nil, testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_EmptyTokenDisablesAuth(t *testing.T) {
	store := rewrite.NewStore(nil, zerolog.Nop())
	h := NewRouter(store, Options{}, zerolog.Nop())

	rec := do(t, h, http.MethodGet, "/control/rewrite/list", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListRewrites(t *testing.T) {
	_, h := newTestAPI(t,
		rewrite.Rule{Domain: "nas.lan", Answer: "192.168.1.10"},
		rewrite.Rule{Domain: "printer.lan", Answer: "192.168.1.20"},
	)

	rec := do(t, h, http.MethodGet, "/control/rewrite/list", nil, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"domain":"nas.lan","answer":"192.168.1.10"},{"domain":"printer.lan","answer":"192.168.1.20"}]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/control/rewrite/list?param=1.20", nil, testToken)
	assert.JSONEq(t, `[{"domain":"printer.lan","answer":"192.168.1.20"}]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/control/rewrite/list?param=none", nil, testToken)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAddRewrite(t *testing.T) {
	store, h := newTestAPI(t)
	entry := map[string]string{"domain": "nas.lan", "answer": "192.168.1.10"}

	rec := do(t, h, http.MethodPost, "/control/rewrite/add", entry, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.Len())

	rec = do(t, h, http.MethodPost, "/control/rewrite/add", entry, testToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "已经存在")
	assert.Equal(t, 1, store.Len())
}

func TestAddRewrite_BadRequest(t *testing.T) {
	store, h := newTestAPI(t)

	tests := map[string]any{
		"invalid json":   `{"domain":`,
		"missing answer": map[string]string{"domain": "nas.lan"},
		"bad domain":     map[string]string{"domain": "nas lan", "answer": "1.1.1.1"},
		"inner wildcard": map[string]string{"domain": "a.*.lan", "answer": "1.1.1.1"},
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/control/rewrite/add", body, testToken)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
	assert.Zero(t, store.Len())
}

func TestAddRewrite_WildcardAccepted(t *testing.T) {
	store, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/control/rewrite/add", map[string]string{"domain": "*.ads.example.com", "answer": "0.0.0.0"}, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.Len())
}

func TestAddRewrite_PersistFailure(t *testing.T) {
	store := rewrite.NewStore(failingPersister{}, zerolog.Nop())
	h := NewRouter(store, Options{}, zerolog.Nop())

	rec := do(t, h, http.MethodPost, "/control/rewrite/add", map[string]string{"domain": "nas.lan", "answer": "1.1.1.1"}, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, store.Len())
}

func TestDeleteRewrite(t *testing.T) {
	store, h := newTestAPI(t,
		rewrite.Rule{Domain: "nas.lan", Answer: "192.168.1.10"},
		rewrite.Rule{Domain: "printer.lan", Answer: "192.168.1.20"},
	)

	rec := do(t, h, http.MethodPost, "/control/rewrite/delete", map[string]string{"domain": "nas.lan", "answer": "192.168.1.10"}, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []rewrite.Rule{{Domain: "printer.lan", Answer: "192.168.1.20"}}, store.Snapshot())

	// 不存在的条目视为成功
	rec = do(t, h, http.MethodPost, "/control/rewrite/delete", map[string]string{"domain": "nas.lan", "answer": "192.168.1.10"}, testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateRewrite(t *testing.T) {
	store, h := newTestAPI(t,
		rewrite.Rule{Domain: "a.lan", Answer: "1.1.1.1"},
		rewrite.Rule{Domain: "b.lan", Answer: "2.2.2.2"},
	)

	body := map[string]any{
		"target": map[string]string{"domain": "a.lan", "answer": "1.1.1.1"},
		"update": map[string]string{"domain": "a.lan", "answer": "1.1.1.2"},
	}
	rec := do(t, h, http.MethodPut, "/control/rewrite/update", body, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rewrite.Rule{Domain: "a.lan", Answer: "1.1.1.2"}, store.Snapshot()[0])

	body["target"] = map[string]string{"domain": "missing.lan", "answer": "9.9.9.9"}
	body["update"] = map[string]string{"domain": "c.lan", "answer": "3.3.3.3"}
	rec = do(t, h, http.MethodPut, "/control/rewrite/update", body, testToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "target rule not found", decodeError(t, rec))

	body["target"] = map[string]string{"domain": "a.lan", "answer": "1.1.1.2"}
	body["update"] = map[string]string{"domain": "b.lan", "answer": "2.2.2.2"}
	rec = do(t, h, http.MethodPut, "/control/rewrite/update", body, testToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "修改")

	// 内容未变的修改同样视为重复
	body["target"] = map[string]string{"domain": "b.lan", "answer": "2.2.2.2"}
	body["update"] = map[string]string{"domain": "b.lan", "answer": "2.2.2.2"}
	rec = do(t, h, http.MethodPut, "/control/rewrite/update", body, testToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DNS 解析 | 您当前 修改 的主机记录 已经存在", decodeError(t, rec))
}

func TestStoredRuleOutsideValidator(t *testing.T) {
	idn := rewrite.Rule{Domain: "例子.lan", Answer: "1.2.3.4"}

	t.Run("delete", func(t *testing.T) {
		store, h := newTestAPI(t, idn)

		rec := do(t, h, http.MethodGet, "/control/rewrite/list", nil, testToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "例子.lan")

		rec = do(t, h, http.MethodPost, "/control/rewrite/delete", map[string]string{"domain": "例子.lan", "answer": "1.2.3.4"}, testToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, store.Len())
	})

	t.Run("update target", func(t *testing.T) {
		store, h := newTestAPI(t, idn)

		body := map[string]any{
			"target": map[string]string{"domain": "例子.lan", "answer": "1.2.3.4"},
			"update": map[string]string{"domain": "xn--fsqu00a.lan", "answer": "1.2.3.4"},
		}
		rec := do(t, h, http.MethodPut, "/control/rewrite/update", body, testToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []rewrite.Rule{{Domain: "xn--fsqu00a.lan", Answer: "1.2.3.4"}}, store.Snapshot())
	})

	t.Run("add still validated", func(t *testing.T) {
		_, h := newTestAPI(t)

		rec := do(t, h, http.MethodPost, "/control/rewrite/add", map[string]string{"domain": "例子.lan", "answer": "1.2.3.4"}, testToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rewritedns_rewrite_rules")
}
