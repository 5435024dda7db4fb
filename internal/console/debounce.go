package console

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// defaultSearchDebounce 搜索框静默多久后发起查询
const defaultSearchDebounce = 500 * time.Millisecond

type searchDebounceMsg struct {
	seq  int
	text string
}

// debouncer 页面创建时生成一次，之后每次输入只重新排期。
// 每次排期都会使之前的排期失效，因此连续输入只触发最后一次。
type debouncer struct {
	delay time.Duration
	seq   int
}

func newDebouncer(delay time.Duration) *debouncer {
	if delay <= 0 {
		delay = defaultSearchDebounce
	}
	return &debouncer{delay: delay}
}

func (d *debouncer) schedule(text string) tea.Cmd {
	d.seq++
	seq := d.seq
	return tea.Tick(d.delay, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq, text: text}
	})
}

// due 报告 msg 是否为最近一次排期
func (d *debouncer) due(msg searchDebounceMsg) bool {
	return msg.seq == d.seq
}
