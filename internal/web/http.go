package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/winspan/rewritedns/internal/rewrite"
)

// RuleStore 管理接口依赖的规则存储
type RuleStore interface {
	List(param string) []rewrite.Rule
	Len() int
	Add(ctx context.Context, r rewrite.Rule) error
	Delete(ctx context.Context, r rewrite.Rule) (int, error)
	Update(ctx context.Context, target, update rewrite.Rule) error
}

// Options 管理接口参数
type Options struct {
	Token       string
	MetricsPath string // 为空时不暴露 /metrics
	Timeout     time.Duration
}

type Api struct {
	store RuleStore
	token string
	log   zerolog.Logger
}

// NewRouter 创建挂好全部路由的 chi 路由器
func NewRouter(store RuleStore, opts Options, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	BindRoutes(r, store, opts, log)
	return r
}

func BindRoutes(r *chi.Mux, store RuleStore, opts Options, log zerolog.Logger) {
	api := &Api{store: store, token: opts.Token, log: log}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	// 中间件
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(hlog.NewHandler(log), accessLog)
	r.Use(middleware.Recoverer, middleware.Timeout(opts.Timeout))

	if opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, promhttp.Handler())
	}

	r.Get("/api/health", api.health)
	r.Group(func(pr chi.Router) {
		pr.Use(api.auth)
		pr.Get("/control/rewrite/list", api.listRewrites)
		pr.Post("/control/rewrite/add", api.addRewrite)
		pr.Post("/control/rewrite/delete", api.deleteRewrite)
		pr.Put("/control/rewrite/update", api.updateRewrite)
	})
}

// accessLog 记录每个请求的方法、路径、状态码与耗时
var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
})

func (a *Api) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 如果token为空，跳过认证
		if a.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") || strings.TrimPrefix(h, "Bearer ") != a.token {
			WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Api) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "rules": a.store.Len()})
}
