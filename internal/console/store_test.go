package console

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winspan/rewritedns/internal/rewrite"
	admin "github.com/winspan/rewritedns/internal/web"
)

// fakeAPI 内存中的控制接口
type fakeAPI struct {
	mu     sync.Mutex
	rules  []rewrite.Rule
	params []string
	err    error
}

func (f *fakeAPI) List(_ context.Context, param string) ([]rewrite.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, param)
	if f.err != nil {
		return nil, f.err
	}
	var out []rewrite.Rule
	for _, r := range f.rules {
		if r.Contains(param) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAPI) Add(_ context.Context, r rewrite.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rules = append(f.rules, r)
	return nil
}

func (f *fakeAPI) Delete(_ context.Context, r rewrite.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	var out []rewrite.Rule
	for _, x := range f.rules {
		if x != r {
			out = append(out, x)
		}
	}
	f.rules = out
	return nil
}

func (f *fakeAPI) Update(_ context.Context, req UpdateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i, x := range f.rules {
		if x == req.Target {
			f.rules[i] = req.Update
			return nil
		}
	}
	return &APIError{Status: 400, Message: "target rule not found"}
}

func newTestStore(api API) *Store {
	return NewStore(context.Background(), api, NewTranslator("en"), time.Second)
}

// drain 依次执行命令并把消息交给 Store，直到没有后续命令
func drain(s *Store, cmd tea.Cmd) {
	for cmd != nil {
		cmd = s.Apply(cmd())
	}
}

func TestStore_GetRewritesList(t *testing.T) {
	api := &fakeAPI{rules: []rewrite.Rule{ruleNAS, rulePrinter}}
	s := newTestStore(api)

	next := s.Apply(s.GetRewritesList(nil)())
	assert.True(t, s.State().Processing)
	require.NotNil(t, next)

	assert.Nil(t, s.Apply(next()))
	st := s.State()
	assert.False(t, st.Processing)
	assert.Equal(t, []rewrite.Rule{ruleNAS, rulePrinter}, st.List)

	drain(s, s.GetRewritesList(&ListParams{Param: "printer"}))
	assert.Equal(t, []rewrite.Rule{rulePrinter}, s.State().List)
	assert.Equal(t, []string{"", "printer"}, api.params)
}

func TestStore_StaleListIgnored(t *testing.T) {
	api := &fakeAPI{rules: []rewrite.Rule{ruleNAS, rulePrinter}}
	s := newTestStore(api)

	first := s.Apply(s.GetRewritesList(&ListParams{Param: "nas"})())
	second := s.Apply(s.GetRewritesList(&ListParams{Param: "printer"})())

	s.Apply(second())
	s.Apply(first())

	assert.Equal(t, []rewrite.Rule{rulePrinter}, s.State().List)
}

func TestStore_AddClosesModalAndRefetches(t *testing.T) {
	api := &fakeAPI{rules: []rewrite.Rule{ruleNAS}}
	s := newTestStore(api)

	drain(s, s.GetRewritesList(&ListParams{Param: "lan"}))
	drain(s, s.ToggleRewritesModal(ModalPayload{Type: ModalAddRewrite}))
	require.True(t, s.State().IsModalOpen)

	next := s.Apply(s.AddRewrite(rulePrinter)())
	assert.True(t, s.State().ProcessingAdd)
	drain(s, next)

	st := s.State()
	assert.False(t, st.ProcessingAdd)
	assert.False(t, st.IsModalOpen)
	assert.Equal(t, []rewrite.Rule{ruleNAS, rulePrinter}, st.List)
	assert.Equal(t, `DNS rewrite for "printer.lan" successfully added`, st.Notice.Text)
	assert.Equal(t, []string{"lan", "lan"}, api.params)
}

func TestStore_FailureKeepsList(t *testing.T) {
	api := &fakeAPI{rules: []rewrite.Rule{ruleNAS}}
	s := newTestStore(api)
	drain(s, s.GetRewritesList(nil))
	drain(s, s.ToggleRewritesModal(ModalPayload{Type: ModalAddRewrite}))

	api.err = &APIError{Status: 400, Message: "DNS 解析 | 您当前 添加 的主机记录 已经存在"}
	drain(s, s.AddRewrite(ruleNAS))

	st := s.State()
	assert.False(t, st.ProcessingAdd)
	assert.True(t, st.IsModalOpen)
	assert.Equal(t, []rewrite.Rule{ruleNAS}, st.List)
	assert.True(t, st.Notice.Error)
	assert.Contains(t, st.Notice.Text, "已经存在")

	api.err = errors.New("connection refused")
	drain(s, s.GetRewritesList(nil))
	assert.Equal(t, []rewrite.Rule{ruleNAS}, s.State().List)
	assert.False(t, s.State().Processing)
}

func TestStore_DeleteAndUpdate(t *testing.T) {
	api := &fakeAPI{rules: []rewrite.Rule{ruleNAS, rulePrinter}}
	s := newTestStore(api)
	drain(s, s.GetRewritesList(nil))

	next := s.Apply(s.DeleteRewrite(ruleNAS)())
	assert.True(t, s.State().ProcessingDelete)
	drain(s, next)
	assert.False(t, s.State().ProcessingDelete)
	assert.Equal(t, []rewrite.Rule{rulePrinter}, s.State().List)

	current := rulePrinter
	drain(s, s.ToggleRewritesModal(ModalPayload{Type: ModalEditRewrite, Rewrite: &current}))
	updated := rewrite.Rule{Domain: "printer.lan", Answer: "192.168.1.21"}

	next = s.Apply(s.UpdateRewrite(UpdateRequest{Target: rulePrinter, Update: updated})())
	assert.True(t, s.State().ProcessingUpdate)
	drain(s, next)

	st := s.State()
	assert.False(t, st.ProcessingUpdate)
	assert.False(t, st.IsModalOpen)
	assert.Nil(t, st.CurrentRewrite)
	assert.Equal(t, []rewrite.Rule{updated}, st.List)
}

func TestStore_ToggleModal(t *testing.T) {
	s := newTestStore(&fakeAPI{})
	current := ruleNAS

	drain(s, s.ToggleRewritesModal(ModalPayload{Type: ModalEditRewrite, Rewrite: &current}))
	st := s.State()
	assert.True(t, st.IsModalOpen)
	assert.Equal(t, ModalEditRewrite, st.ModalType)
	require.NotNil(t, st.CurrentRewrite)
	assert.Equal(t, ruleNAS, *st.CurrentRewrite)

	// 快照与调用方的数据相互独立
	current.Answer = "changed"
	assert.Equal(t, ruleNAS, *s.State().CurrentRewrite)

	drain(s, s.ToggleRewritesModal(ModalPayload{Type: ModalEditRewrite}))
	assert.False(t, s.State().IsModalOpen)
	assert.Nil(t, s.State().CurrentRewrite)

	drain(s, s.ToggleRewritesModal(ModalPayload{Type: ModalAddRewrite, Rewrite: &current}))
	st = s.State()
	assert.True(t, st.IsModalOpen)
	assert.Equal(t, ModalAddRewrite, st.ModalType)
	assert.Nil(t, st.CurrentRewrite)
}

func TestStore_AgainstControlAPI(t *testing.T) {
	rules := rewrite.NewStore(nil, zerolog.Nop())
	srv := httptest.NewServer(admin.NewRouter(rules, admin.Options{Token: "t0ken"}, zerolog.Nop()))
	defer srv.Close()

	s := newTestStore(NewClient(srv.URL, "t0ken", time.Second))

	drain(s, s.GetRewritesList(nil))
	assert.Empty(t, s.State().List)
	assert.False(t, s.State().Notice.Error)

	drain(s, s.AddRewrite(ruleNAS))
	assert.Equal(t, []rewrite.Rule{ruleNAS}, s.State().List)

	drain(s, s.AddRewrite(ruleNAS))
	assert.True(t, s.State().Notice.Error)
	assert.Contains(t, s.State().Notice.Text, "已经存在")

	updated := rewrite.Rule{Domain: "nas.lan", Answer: "192.168.1.11"}
	drain(s, s.UpdateRewrite(UpdateRequest{Target: ruleNAS, Update: updated}))
	assert.Equal(t, []rewrite.Rule{updated}, s.State().List)

	drain(s, s.DeleteRewrite(updated))
	assert.Empty(t, s.State().List)
	assert.Zero(t, rules.Len())
}

func TestApp_MountFetchesList(t *testing.T) {
	api := &fakeAPI{rules: []rewrite.Rule{ruleNAS}}
	app := NewApp(newTestStore(api), NewTranslator("en"), 0)

	cmd := app.Init()
	require.NotNil(t, cmd)
	for cmd != nil {
		_, cmd = app.Update(cmd())
	}

	assert.Contains(t, app.View(), "nas.lan")
	assert.Equal(t, []string{""}, api.params)
}
