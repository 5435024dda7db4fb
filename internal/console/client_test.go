package console

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winspan/rewritedns/internal/rewrite"
)

func TestClient_List(t *testing.T) {
	var gotAuth, gotParam string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotParam = r.URL.Query().Get("param")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"domain":"nas.lan","answer":"192.168.1.10"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "abc", time.Second)
	rules, err := c.List(context.Background(), "nas & co")
	require.NoError(t, err)

	assert.Equal(t, []rewrite.Rule{ruleNAS}, rules)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "nas & co", gotParam)
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "json error", body: `{"error":"target rule not found"}`, wantMsg: "target rule not found"},
		{name: "plain text", body: "unauthorized\n", wantMsg: "unauthorized"},
		{name: "empty", body: "", wantMsg: "控制接口返回 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "", time.Second).Delete(context.Background(), ruleNAS)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, tt.wantMsg, apiErr.Error())
		})
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient(srv.URL, "", time.Second).Add(ctx, ruleNAS)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranslator(t *testing.T) {
	en := NewTranslator("en-US")
	assert.Equal(t, "en", en.Lang())
	assert.Equal(t, `Are you sure you want to delete DNS rewrite for "nas.lan"?`,
		en.T("rewrite_confirm_delete", map[string]string{"key": "nas.lan"}))

	zh := NewTranslator("zh_CN")
	assert.Equal(t, "zh", zh.Lang())
	assert.Equal(t, "请输入主机记录或记录值", zh.T("rewrite_search_placeholder", nil))

	assert.Equal(t, "en", NewTranslator("fr").Lang())
	assert.Equal(t, "missing_key", en.T("missing_key", nil))
}
