package console

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// App 终端程序的根模型：先由 Store 折叠消息，再交给页面
type App struct {
	store *Store
	page  *RewritesPage
}

// NewApp 组装 Store 与 RewritesPage
func NewApp(store *Store, t Translator, debounce time.Duration) *App {
	page := NewRewritesPage(Props{
		State:    store.State,
		Actions:  store,
		T:        t,
		Debounce: debounce,
	})
	return &App{store: store, page: page}
}

func (a *App) Init() tea.Cmd {
	return a.page.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	storeCmd := a.store.Apply(msg)
	pageCmd := a.page.Update(msg)
	return a, tea.Batch(storeCmd, pageCmd)
}

func (a *App) View() string {
	return a.page.View()
}
