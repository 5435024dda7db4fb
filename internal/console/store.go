package console

import (
	"context"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/winspan/rewritedns/internal/rewrite"
)

// Actions 页面可以发起的操作，全部异步执行
type Actions interface {
	GetRewritesList(params *ListParams) tea.Cmd
	AddRewrite(values rewrite.Rule) tea.Cmd
	DeleteRewrite(r rewrite.Rule) tea.Cmd
	UpdateRewrite(req UpdateRequest) tea.Cmd
	ToggleRewritesModal(payload ModalPayload) tea.Cmd
}

// 请求消息：由 Actions 产生，经 Store.Apply 发起调用
type (
	listRequestMsg   struct{ params *ListParams }
	addRequestMsg    struct{ rule rewrite.Rule }
	deleteRequestMsg struct{ rule rewrite.Rule }
	updateRequestMsg struct{ req UpdateRequest }
	toggleModalMsg   struct{ payload ModalPayload }
)

// 结果消息
type (
	listResultMsg struct {
		seq   int
		rules []rewrite.Rule
		err   error
	}
	addResultMsg struct {
		rule rewrite.Rule
		err  error
	}
	deleteResultMsg struct {
		rule rewrite.Rule
		err  error
	}
	updateResultMsg struct {
		req UpdateRequest
		err error
	}
)

// Store 持有 RewritesState，实现 Actions，并把结果消息折叠回状态
type Store struct {
	api     API
	ctx     context.Context
	timeout time.Duration
	t       Translator

	state      RewritesState
	lastParams *ListParams
	listSeq    int
}

// NewStore 创建 Store；ctx 取消后进行中的请求随之取消
func NewStore(ctx context.Context, api API, t Translator, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{api: api, ctx: ctx, timeout: timeout, t: t}
}

// State 返回状态快照
func (s *Store) State() RewritesState {
	st := s.state
	st.List = slices.Clone(s.state.List)
	return st
}

func (s *Store) GetRewritesList(params *ListParams) tea.Cmd {
	return func() tea.Msg { return listRequestMsg{params: params} }
}

func (s *Store) AddRewrite(values rewrite.Rule) tea.Cmd {
	return func() tea.Msg { return addRequestMsg{rule: values} }
}

func (s *Store) DeleteRewrite(r rewrite.Rule) tea.Cmd {
	return func() tea.Msg { return deleteRequestMsg{rule: r} }
}

func (s *Store) UpdateRewrite(req UpdateRequest) tea.Cmd {
	return func() tea.Msg { return updateRequestMsg{req: req} }
}

func (s *Store) ToggleRewritesModal(payload ModalPayload) tea.Cmd {
	return func() tea.Msg { return toggleModalMsg{payload: payload} }
}

// Apply 处理 Store 关心的消息，返回后续命令；其他消息忽略
func (s *Store) Apply(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case listRequestMsg:
		s.state.Processing = true
		s.lastParams = msg.params
		s.listSeq++
		return s.fetchList(s.listSeq, msg.params)

	case listResultMsg:
		// 只接受最近一次请求的结果
		if msg.seq != s.listSeq {
			return nil
		}
		s.state.Processing = false
		if msg.err != nil {
			s.fail(msg.err)
			return nil
		}
		s.state.List = msg.rules

	case addRequestMsg:
		s.state.ProcessingAdd = true
		rule := msg.rule
		return s.call(func(ctx context.Context) tea.Msg {
			return addResultMsg{rule: rule, err: s.api.Add(ctx, rule)}
		})

	case addResultMsg:
		s.state.ProcessingAdd = false
		if msg.err != nil {
			s.fail(msg.err)
			return nil
		}
		s.closeModal()
		s.notify("rewrite_added", msg.rule.Domain)
		return s.GetRewritesList(s.lastParams)

	case deleteRequestMsg:
		s.state.ProcessingDelete = true
		rule := msg.rule
		return s.call(func(ctx context.Context) tea.Msg {
			return deleteResultMsg{rule: rule, err: s.api.Delete(ctx, rule)}
		})

	case deleteResultMsg:
		s.state.ProcessingDelete = false
		if msg.err != nil {
			s.fail(msg.err)
			return nil
		}
		s.notify("rewrite_deleted", msg.rule.Domain)
		return s.GetRewritesList(s.lastParams)

	case updateRequestMsg:
		s.state.ProcessingUpdate = true
		req := msg.req
		return s.call(func(ctx context.Context) tea.Msg {
			return updateResultMsg{req: req, err: s.api.Update(ctx, req)}
		})

	case updateResultMsg:
		s.state.ProcessingUpdate = false
		if msg.err != nil {
			s.fail(msg.err)
			return nil
		}
		s.closeModal()
		s.notify("rewrite_updated", msg.req.Update.Domain)
		return s.GetRewritesList(s.lastParams)

	case toggleModalMsg:
		s.toggleModal(msg.payload)
	}

	return nil
}

func (s *Store) toggleModal(p ModalPayload) {
	s.state.IsModalOpen = !s.state.IsModalOpen
	s.state.CurrentRewrite = nil
	if !s.state.IsModalOpen {
		return
	}

	s.state.Notice = Notice{}
	s.state.ModalType = p.Type
	if p.Type == ModalEditRewrite && p.Rewrite != nil {
		r := *p.Rewrite
		s.state.CurrentRewrite = &r
	}
}

func (s *Store) closeModal() {
	s.state.IsModalOpen = false
	s.state.CurrentRewrite = nil
}

func (s *Store) notify(key, domain string) {
	s.state.Notice = Notice{Text: s.t.T(key, map[string]string{"key": domain})}
}

func (s *Store) fail(err error) {
	s.state.Notice = Notice{Text: err.Error(), Error: true}
}

func (s *Store) fetchList(seq int, params *ListParams) tea.Cmd {
	param := ""
	if params != nil {
		param = params.Param
	}
	return s.call(func(ctx context.Context) tea.Msg {
		rules, err := s.api.List(ctx, param)
		return listResultMsg{seq: seq, rules: rules, err: err}
	})
}

// call 在独立的超时上下文中执行请求
func (s *Store) call(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		return fn(ctx)
	}
}
