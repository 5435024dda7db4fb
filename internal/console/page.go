package console

import (
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/winspan/rewritedns/internal/rewrite"
)

// Props 页面依赖：只读的状态快照与可调度的操作
type Props struct {
	State   func() RewritesState
	Actions Actions
	T       Translator
	// Debounce 搜索防抖间隔，默认 500ms
	Debounce time.Duration
}

// RewritesPage DNS 重写规则页面
type RewritesPage struct {
	props    Props
	mounted  bool
	debounce *debouncer

	search    textinput.Model
	searching bool

	table table.Model
	rows  []rewrite.Rule

	form    ruleForm
	confirm *rewrite.Rule

	width int
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	buttonStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.NormalBorder())
	disabledStyle = buttonStyle.Faint(true).Strikethrough(true)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hintStyle     = lipgloss.NewStyle().Faint(true)
)

// NewRewritesPage 创建页面
func NewRewritesPage(props Props) *RewritesPage {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = props.T.T("rewrite_search_placeholder", nil)

	t := table.New(table.WithFocused(true), table.WithHeight(10))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true)
	styles.Selected = styles.Selected.Bold(true)
	t.SetStyles(styles)

	p := &RewritesPage{
		props:    props,
		debounce: newDebouncer(props.Debounce),
		search:   search,
		table:    t,
		width:    80,
	}
	p.form = newRuleForm(props.T)
	p.resize(p.width)
	return p
}

// Init 首次挂载时拉取列表，重复调用不再拉取
func (p *RewritesPage) Init() tea.Cmd {
	if p.mounted {
		return nil
	}
	p.mounted = true
	return p.props.Actions.GetRewritesList(nil)
}

// HandleDelete 打开删除确认
func (p *RewritesPage) HandleDelete(r rewrite.Rule) tea.Cmd {
	p.confirm = &r
	return nil
}

// HandleSubmit 编辑模式下更新当前规则，否则新增
func (p *RewritesPage) HandleSubmit(values rewrite.Rule) tea.Cmd {
	st := p.props.State()
	if st.ModalType == ModalEditRewrite && st.CurrentRewrite != nil {
		return p.props.Actions.UpdateRewrite(UpdateRequest{
			Target: *st.CurrentRewrite,
			Update: values,
		})
	}
	return p.props.Actions.AddRewrite(values)
}

// HandleSearchChange 防抖后按 text 查询
func (p *RewritesPage) HandleSearchChange(text string) tea.Cmd {
	return p.debounce.schedule(text)
}

// AddDisabled 添加按钮是否不可用
func (p *RewritesPage) AddDisabled() bool {
	return p.props.State().ProcessingAdd
}

// Confirming 删除确认框是否打开
func (p *RewritesPage) Confirming() bool {
	return p.confirm != nil
}

func (p *RewritesPage) Update(msg tea.Msg) tea.Cmd {
	st := p.props.State()
	p.sync(st)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.resize(msg.Width)
		return nil

	case searchDebounceMsg:
		if !p.debounce.due(msg) {
			return nil
		}
		return p.props.Actions.GetRewritesList(&ListParams{Param: msg.text})

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return tea.Quit
		}
		switch {
		case p.confirm != nil:
			return p.updateConfirm(msg)
		case st.IsModalOpen:
			return p.updateForm(msg, st)
		case p.searching:
			return p.updateSearch(msg)
		}
		return p.updateList(msg, st)
	}

	return nil
}

func (p *RewritesPage) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y", "enter":
		r := *p.confirm
		p.confirm = nil
		return p.props.Actions.DeleteRewrite(r)
	case "n", "N", "esc":
		p.confirm = nil
	}
	return nil
}

func (p *RewritesPage) updateForm(msg tea.KeyMsg, st RewritesState) tea.Cmd {
	switch msg.String() {
	case "esc":
		return p.props.Actions.ToggleRewritesModal(ModalPayload{Type: st.ModalType})
	case "tab", "shift+tab":
		p.form.next(msg.String() == "shift+tab")
		return nil
	case "enter":
		if st.ProcessingAdd || st.ProcessingUpdate {
			return nil
		}
		return p.HandleSubmit(p.form.values())
	}
	return p.form.update(msg)
}

func (p *RewritesPage) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter":
		p.searching = false
		p.search.Blur()
		p.table.Focus()
		return nil
	}

	before := p.search.Value()
	var cmd tea.Cmd
	p.search, cmd = p.search.Update(msg)
	if v := p.search.Value(); v != before {
		return tea.Batch(cmd, p.HandleSearchChange(v))
	}
	return cmd
}

func (p *RewritesPage) updateList(msg tea.KeyMsg, st RewritesState) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "/":
		p.searching = true
		p.table.Blur()
		return p.search.Focus()
	case "a":
		if p.AddDisabled() {
			return nil
		}
		return p.props.Actions.ToggleRewritesModal(ModalPayload{Type: ModalAddRewrite})
	case "e", "enter":
		if r, ok := p.selected(); ok {
			return p.props.Actions.ToggleRewritesModal(ModalPayload{Type: ModalEditRewrite, Rewrite: &r})
		}
		return nil
	case "d":
		if st.ProcessingDelete {
			return nil
		}
		if r, ok := p.selected(); ok {
			return p.HandleDelete(r)
		}
		return nil
	}

	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return cmd
}

func (p *RewritesPage) selected() (rewrite.Rule, bool) {
	i := p.table.Cursor()
	if i < 0 || i >= len(p.rows) {
		return rewrite.Rule{}, false
	}
	return p.rows[i], true
}

// sync 让表格与表单跟上最新状态
func (p *RewritesPage) sync(st RewritesState) {
	if !slices.Equal(p.rows, st.List) {
		p.rows = slices.Clone(st.List)
		rows := make([]table.Row, 0, len(p.rows))
		for _, r := range p.rows {
			rows = append(rows, table.Row{r.Domain, r.Answer})
		}
		p.table.SetRows(rows)
		// 列表清空后光标会停在 -1，重新有数据时回到首行
		switch c := p.table.Cursor(); {
		case len(rows) == 0:
		case c < 0:
			p.table.SetCursor(0)
		case c >= len(rows):
			p.table.SetCursor(len(rows) - 1)
		}
	}

	switch {
	case st.IsModalOpen && !p.form.open:
		p.form.reset(st.CurrentRewrite)
	case !st.IsModalOpen && p.form.open:
		p.form.open = false
	}
}

func (p *RewritesPage) resize(width int) {
	if width <= 0 {
		return
	}
	p.width = width
	col := max((width-6)/2, 12)
	p.table.SetColumns([]table.Column{
		{Title: p.props.T.T("domain", nil), Width: col},
		{Title: p.props.T.T("answer", nil), Width: col},
	})
	p.search.Width = max(width-len(p.props.T.T("dns_rewrites", nil))-8, 10)
}

func (p *RewritesPage) View() string {
	st := p.props.State()
	p.sync(st)
	t := p.props.T

	header := lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render(t.T("dns_rewrites", nil)), "  ", p.search.View())

	var body string
	switch {
	case st.Processing && len(p.rows) == 0:
		body = hintStyle.Render(t.T("loading", nil))
	case len(p.rows) == 0:
		body = hintStyle.Render(t.T("rewrite_not_found", nil))
	default:
		body = p.table.View()
		if st.Processing || st.ProcessingDelete || st.ProcessingUpdate {
			body += "\n" + hintStyle.Render(t.T("loading", nil))
		}
	}

	button := buttonStyle.Render(t.T("rewrite_add", nil))
	if st.ProcessingAdd {
		button = disabledStyle.Render(t.T("rewrite_add", nil))
	}

	parts := []string{header, "", body, button}
	if !st.Notice.Empty() {
		notice := st.Notice.Text
		if st.Notice.Error {
			notice = errorStyle.Render(notice)
		}
		parts = append(parts, notice)
	}

	switch {
	case p.confirm != nil:
		text := t.T("rewrite_confirm_delete", map[string]string{"key": p.confirm.Domain})
		parts = append(parts, boxStyle.Render(text+"\n\n"+hintStyle.Render(t.T("confirm_hint", nil))))
	case st.IsModalOpen:
		parts = append(parts, p.form.view(st))
	default:
		parts = append(parts, hintStyle.Render(t.T("page_hint", nil)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// ruleForm 新增与编辑共用的弹窗表单
type ruleForm struct {
	t      Translator
	open   bool
	inputs []textinput.Model
	focus  int
}

func newRuleForm(t Translator) ruleForm {
	f := ruleForm{t: t}
	for _, key := range []string{"domain", "answer"} {
		in := textinput.New()
		in.Prompt = t.T(key, nil) + ": "
		in.CharLimit = 253
		f.inputs = append(f.inputs, in)
	}
	return f
}

func (f *ruleForm) reset(current *rewrite.Rule) {
	f.open = true
	f.focus = 0
	var values [2]string
	if current != nil {
		values = [2]string{current.Domain, current.Answer}
	}
	for i := range f.inputs {
		f.inputs[i].SetValue(values[i])
		f.inputs[i].Blur()
	}
	f.inputs[0].Focus()
}

func (f *ruleForm) next(back bool) {
	dir := 1
	if back {
		dir = -1
	}
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + dir + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *ruleForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *ruleForm) values() rewrite.Rule {
	return rewrite.Rule{
		Domain: strings.TrimSpace(f.inputs[0].Value()),
		Answer: strings.TrimSpace(f.inputs[1].Value()),
	}
}

func (f *ruleForm) view(st RewritesState) string {
	title := f.t.T("rewrite_add", nil)
	if st.ModalType == ModalEditRewrite {
		title = f.t.T("rewrite_edit", nil)
	}

	lines := []string{titleStyle.Render(title)}
	for _, in := range f.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, "", hintStyle.Render(f.t.T("modal_hint", nil)))
	return boxStyle.Render(strings.Join(lines, "\n"))
}
