package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/winspan/rewritedns/internal/dns"
	"github.com/winspan/rewritedns/internal/rewrite"
	"github.com/winspan/rewritedns/internal/storage"
	admin "github.com/winspan/rewritedns/internal/web"
	"github.com/winspan/rewritedns/pkg/config"
	"github.com/winspan/rewritedns/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DNS server and the control API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.IsProduction() && cfg.Security.AdminToken == "" {
		return errors.New("生产环境必须配置 security.admin_token")
	}

	log, closer, err := logger.NewLogger(logger.Config{
		Level:      cfg.LogLevel(),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Service:    cfg.App.Name,
	})
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer closer.Close()

	log.Info().
		Str("version", AppVersion).
		Str("env", cfg.App.Environment).
		Str("storage", cfg.Database.Type).
		Msg("starting")

	sm, err := storage.NewStorageManager(cfg)
	if err != nil {
		return fmt.Errorf("初始化存储管理器失败: %w", err)
	}
	defer sm.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rules := rewrite.NewStore(sm, log.With().Str("component", "rewrite").Logger())
	if err := rules.Load(ctx); err != nil {
		return err
	}

	dnsSrv := dns.NewServer(rules, dns.Options{
		Upstreams: cfg.Upstream.Servers,
		Timeout:   cfg.UpstreamTimeout(),
		TTL:       cfg.Rewrites.TTL,
		CacheSize: cfg.Upstream.CacheMax,
		CacheTTL:  cfg.UpstreamCacheTTL(),
	}, log.With().Str("component", "dns").Logger())

	opts := admin.Options{Token: cfg.Security.AdminToken}
	if cfg.Monitoring.Enabled {
		opts.MetricsPath = cfg.Monitoring.Path
	}
	if cfg.Security.AdminToken == "" {
		log.Warn().Msg("admin_token 为空，管理接口未启用认证")
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTP,
		Handler:           admin.NewRouter(rules, opts, log.With().Str("component", "http").Logger()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dnsSrv.ListenAndServe(gctx, cfg.Server.DNS)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTP).Msg("admin http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		reloadOnHUP(gctx, rules, dnsSrv, log)
		return nil
	})

	err = g.Wait()
	log.Info().Err(err).Msg("stopped")
	return err
}

// reloadOnHUP 收到 SIGHUP 时从存储重新加载规则
func reloadOnHUP(ctx context.Context, rules *rewrite.Store, dnsSrv *dns.Server, log zerolog.Logger) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP)
	defer signal.Stop(sigc)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigc:
			if err := rules.Load(ctx); err != nil {
				log.Error().Err(err).Msg("reload rules failed")
				continue
			}
			dnsSrv.ClearCache()
			log.Info().Int("rules", rules.Len()).Msg("rules reloaded")
		}
	}
}
