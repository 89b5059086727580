package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/meshkv/internal/core/engine"
	"github.com/yndnr/meshkv/internal/core/pubsub"
	"github.com/yndnr/meshkv/internal/infra/buildinfo"
	"github.com/yndnr/meshkv/internal/infra/confloader"
	"github.com/yndnr/meshkv/internal/infra/shutdown"
	"github.com/yndnr/meshkv/internal/infra/tlsroots"
	"github.com/yndnr/meshkv/internal/server/config"
	"github.com/yndnr/meshkv/internal/server/httpserver"
	"github.com/yndnr/meshkv/internal/server/redisserver"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
	"github.com/yndnr/meshkv/internal/telemetry/logger"
	"github.com/yndnr/meshkv/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	info := buildinfo.Get()
	flags := []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to configuration file", EnvVars: []string{"MESHKV_CONFIG"}},
		&cli.StringFlag{Name: "redis-addr", Usage: "RESP listen address"},
		&cli.StringFlag{Name: "http-addr", Usage: "HTTP listen address"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
	}
	return &cli.App{
		Name:    "meshkv-server",
		Usage:   "in-memory data structure server",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.BuildTime),
		Flags:   flags,
		Action: func(c *cli.Context) error {
			loader := newLoader(c)
			cfg, err := loadConfig(loader)
			if err != nil {
				return err
			}
			return run(c.Context, cfg, loader)
		},
		Commands: []*cli.Command{
			{
				Name:  "check-config",
				Usage: "Load and validate the configuration, then exit",
				Flags: flags,
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(newLoader(c))
					if err != nil {
						return err
					}
					if config.TLSEnabled(cfg) {
						if _, _, err := loadTLS(cfg, slog.New(slog.DiscardHandler)); err != nil {
							return err
						}
					}
					fmt.Fprintf(c.App.Writer, "configuration ok: redis=%s (enabled=%t, tls=%t) http=%s (enabled=%t, tls=%t) shards=%d\n",
						cfg.Server.Redis.Addr, cfg.Server.Redis.Enabled, cfg.Server.Redis.TLS,
						cfg.Server.HTTP.Addr, cfg.Server.HTTP.Enabled, cfg.Server.HTTP.TLS, cfg.Storage.Shards)
					return nil
				},
			},
		},
	}
}

// newLoader turns explicitly set flags into loader overrides.
func newLoader(c *cli.Context) *confloader.Loader {
	overrides := make(map[string]any)
	for flag, key := range map[string]string{
		"redis-addr": "server.redis.addr",
		"http-addr":  "server.http.addr",
		"log-level":  "log.level",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig loads defaults, file, environment and flags, then validates.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// instance is one wired server.
type instance struct {
	cfg    *config.ServerConfig
	log    *slog.Logger
	engine *engine.Engine
	router *pubsub.Router
	redis  *redisserver.Server
	http   *httpserver.Server
	certs  *tlsroots.KeyPair
}

// loadTLS loads the listener key pair and, if configured, the client CA.
func loadTLS(cfg *config.ServerConfig, log *slog.Logger) (*tlsroots.KeyPair, *tls.Config, error) {
	t := cfg.Server.TLS
	kp, err := tlsroots.LoadKeyPair(t.CertFile, t.KeyFile, tlsroots.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	var clientCAs *x509.CertPool
	if t.ClientCAFile != "" {
		if clientCAs, err = tlsroots.LoadCAFile(t.ClientCAFile); err != nil {
			return nil, nil, err
		}
	}
	return kp, kp.ServerConfig(clientCAs), nil
}

func newInstance(cfg *config.ServerConfig, log *slog.Logger) (*instance, error) {
	var (
		certs  *tlsroots.KeyPair
		tlsCfg *tls.Config
	)
	if config.TLSEnabled(cfg) {
		var err error
		if certs, tlsCfg, err = loadTLS(cfg, log); err != nil {
			return nil, err
		}
	}

	reg := metric.NewRegistry()

	ks := keyspace.New(keyspace.WithShards(cfg.Storage.Shards))
	eng := engine.New(ks, engine.WithLogger(log), engine.WithObserver(reg))
	router := pubsub.NewRouter(pubsub.WithLogger(log), pubsub.WithObserver(reg))
	reg.MustRegister(metric.NewCollector(eng, router))

	redisCfg := config.ToRedisConfig(cfg)
	if cfg.Server.Redis.TLS {
		redisCfg.TLS = tlsCfg
	}
	redisSrv := redisserver.New(redisCfg, eng, router, log, redisserver.WithObserver(reg))

	httpCfg := config.ToHTTPConfig(cfg)
	if cfg.Server.HTTP.TLS {
		httpCfg.TLS = tlsCfg
	}
	rc := httpserver.RouterConfigFrom(httpCfg)
	rc.Keys = eng
	rc.PubSub = router
	rc.Clients = redisSrv
	rc.Metrics = reg.Handler()
	rc.Logger = log
	httpSrv := httpserver.New(httpCfg, httpserver.NewRouter(rc), log)

	return &instance{cfg: cfg, log: log, engine: eng, router: router, redis: redisSrv, http: httpSrv, certs: certs}, nil
}

// start opens the listeners. On failure nothing is left running.
func (i *instance) start(ctx context.Context) error {
	if err := i.redis.Start(ctx); err != nil {
		return fmt.Errorf("start redis listener: %w", err)
	}
	if err := i.http.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = i.redis.Shutdown(stopCtx)
		return fmt.Errorf("start http listener: %w", err)
	}
	return nil
}

// serve runs background work until ctx ends, then shuts everything down.
func (i *instance) serve(ctx context.Context, loader *confloader.Loader) error {
	// serveCtx ends websocket streams and background work on shutdown.
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	if err := i.start(serveCtx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(serveCtx)

	g.Go(func() error {
		i.engine.RunExpiry(gctx, i.cfg.Storage.ExpiryInterval, i.cfg.Storage.ExpirySample)
		return nil
	})

	if files := i.watchedFiles(loader); len(files) > 0 {
		w, err := i.newWatcher(files)
		if err != nil {
			i.log.Warn("hot reload unavailable", "error", err)
		} else {
			w.OnChange(func(path string) {
				if i.certs != nil && i.certs.Owns(path) {
					if err := i.certs.Reload(); err != nil {
						i.log.Error("certificate reload failed", "error", err)
					}
					return
				}
				if loader != nil {
					i.reload(loader)
				}
			})
			g.Go(func() error {
				w.Run(gctx)
				return w.Stop()
			})
		}
	}

	h := shutdown.NewHandler(shutdownTimeout, i.log)
	h.OnShutdown("background", func(context.Context) error { return g.Wait() })
	h.OnShutdown("redis", i.redis.Shutdown)
	h.OnShutdown("http", i.http.Shutdown)
	h.OnShutdown("cancel", func(context.Context) error {
		stop()
		return nil
	})

	i.log.Info("server started", "redis", addrString(i.redis.Addr()), "http", addrString(i.http.Addr()))
	err := h.Wait(ctx)
	i.log.Info("server stopped")
	return err
}

// watchedFiles lists the configuration file and the TLS key pair.
func (i *instance) watchedFiles(loader *confloader.Loader) []string {
	var files []string
	if loader != nil && loader.FilePath() != "" {
		files = append(files, loader.FilePath())
	}
	if i.certs != nil {
		files = append(files, i.certs.Files()...)
	}
	return files
}

func (i *instance) newWatcher(files []string) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(i.log))
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := w.Watch(f); err != nil {
			_ = w.Stop()
			return nil, err
		}
	}
	return w, nil
}

// reload re-reads the configuration and applies the settings that can
// change at runtime. Today that is log.level.
func (i *instance) reload(loader *confloader.Loader) {
	next := config.Default()
	if err := loader.Reload(next); err != nil {
		i.log.Error("config reload failed", "error", err)
		return
	}
	if err := config.Verify(next); err != nil {
		i.log.Error("config reload rejected", "error", err)
		return
	}
	if next.Log.Level != logger.GetLevel() {
		i.log.Info("log level changed", "from", logger.GetLevel(), "to", next.Log.Level)
		logger.SetLevel(next.Log.Level)
	}
}

func run(ctx context.Context, cfg *config.ServerConfig, loader *confloader.Loader) error {
	lg, err := logger.New(config.ToLoggerConfig(cfg))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(lg)
	log := logger.Slog(lg)

	info := buildinfo.Get()
	log.Info("starting meshkv-server", "version", info.Version, "commit", info.Commit, "config", loader.FilePath())

	inst, err := newInstance(cfg, log)
	if err != nil {
		return err
	}
	err = inst.serve(ctx, loader)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func addrString(a net.Addr) string {
	if a == nil {
		return "disabled"
	}
	return a.String()
}
