package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"regsniper/internal/agent"
	"regsniper/internal/browser"
	"regsniper/internal/config"
	"regsniper/internal/httpapi"
	"regsniper/internal/logbus"
	"regsniper/internal/notify"
	"regsniper/internal/portal"
	"regsniper/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var opts []logbus.Option
	if cfg.Log.Console {
		opts = append(opts, logbus.WithConsole(logbus.NewConsoleLogger(cfg.Log.Level)))
	}
	bus := logbus.New(cfg.Agent.StatusBufLines, opts...)
	bus.Log("info", "agent host starting", map[string]any{"addr": cfg.Server.Addr})

	ctx := context.Background()
	store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	b, err := browser.Launch(cfg.Browser)
	if err != nil {
		log.Fatalf("start browser: %v", err)
	}
	defer b.Close()

	notifier := notify.NewEmailNotifier(store, bus)

	var limiter *rate.Limiter
	if cfg.Limits.SubmitQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Limits.SubmitQPS), cfg.Limits.SubmitBurst)
	}

	var cookies browser.CookieStore
	if cfg.Browser.KeepCookies {
		cookies = store
	}

	var ag *agent.Agent
	session := browser.NewSession(browser.SessionOptions{
		Browser:  b,
		StartURL: cfg.Portal.StartURL,
		Host:     cfg.Portal.Host,
		Cookies:  cookies,
		Bus:      bus,
		OnLoad: func(string) {
			if _, err := ag.Initialize(context.Background()); err != nil {
				bus.Log("error", "agent initialize failed", map[string]any{"error": err.Error()})
			}
		},
	})
	ag = agent.New(agent.Options{
		Store:         store,
		Page:          session.Page(),
		Contract:      portal.ContractFromConfig(cfg.Portal),
		Bus:           bus,
		Notifier:      notifier,
		ResultsWait:   cfg.Agent.ResultsWait(),
		StatusTick:    cfg.Agent.StatusTick(),
		SubmitLimiter: limiter,
	})

	if _, err := session.Attach(ctx); err != nil {
		log.Fatalf("open portal tab: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Cfg:      cfg,
		Bus:      bus,
		Agent:    ag,
		Tab:      session,
		Settings: store,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		bus.Log("info", "shutdown signal received", map[string]any{"signal": sig.String()})
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			bus.Log("error", "http server error", map[string]any{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_ = server.Shutdown(shutdownCtx)
	_ = ag.Close(shutdownCtx)
	if err := session.SaveCookies(shutdownCtx); err != nil {
		bus.Log("warn", "save cookies failed", map[string]any{"error": err.Error()})
	}
	_ = session.Close()
	_ = notifier.Close(shutdownCtx)
	bus.Log("info", "agent host stopped", nil)
}
