package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"vortex/internal/adapters/cache"
	emailPkg "vortex/internal/adapters/email"
	web "vortex/internal/adapters/http"
	"vortex/internal/adapters/http/perf"
	"vortex/internal/adapters/live"
	"vortex/internal/adapters/storage"
	conversationStore "vortex/internal/adapters/storage/conversation"
	messageStore "vortex/internal/adapters/storage/message"
	outboxStore "vortex/internal/adapters/storage/outbox"
	profileStore "vortex/internal/adapters/storage/profile"
	"vortex/internal/application/orchestrators"
	"vortex/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func setupLogging(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(ctx context.Context, cfg config.Config) error {
	// WAL mode, foreign keys and busy timeout come from the DSN.
	db, err := sql.Open("sqlite", storage.DSN(cfg.Database.Path))
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := storage.InitDB(db); err != nil {
		return err
	}
	log.Println("Database initialized successfully!")

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(cfg.Perf.RingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.Perf.SlowQueryMs)

	stores := web.Stores{
		Conversations: conversationStore.NewSQLiteStore(timedDB),
		Messages:      messageStore.NewSQLiteStore(timedDB),
		Profiles:      profileStore.NewSQLiteStore(timedDB),
		Outbox:        outboxStore.NewSQLiteStore(timedDB),
	}

	// Redis fans live events out across instances and caches profile
	// lookups; without it a single instance uses an in-process bus.
	var bus live.Bus
	if cfg.Redis.URL != "" {
		redisBus, err := live.NewRedisBus(cfg.Redis.URL, cfg.Redis.ChannelPrefix)
		if err != nil {
			return err
		}
		bus = redisBus
		stores.Profiles = cache.NewCachedProfileStore(stores.Profiles,
			cache.NewRedisCacheFromClient(redisBus.Client()), cfg.Redis.ProfileTTL)
		log.Println("Live bus configured (Redis)")
	} else {
		bus = live.NewMemoryBus()
		log.Println("Live bus configured (in-process; set VORTEX_REDIS_URL to run several instances)")
	}
	defer bus.Close()

	var sender emailPkg.Sender
	if cfg.Email.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.Email.ResendKey, cfg.Email.From, cfg.Email.ReplyTo)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NoopSender{}
		if cfg.IsProduction() {
			log.Println("WARNING: VORTEX_EMAIL_RESEND_KEY is not set, offline notifications are only logged")
		} else {
			log.Println("Email sender configured (noop, set VORTEX_EMAIL_RESEND_KEY for real delivery)")
		}
	}

	stopOutbox := orchestrators.StartOutboxRetryScheduler(ctx, orchestrators.OutboxRetryDeps{
		OutboxStore: stores.Outbox,
		Sender:      sender,
		Now:         time.Now,
		From:        cfg.Email.From,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	}, orchestrators.OutboxRetryConfig{Interval: cfg.Outbox.Interval, Enabled: true})
	defer stopOutbox()

	csrfKey, err := loadCSRFKey(cfg)
	if err != nil {
		return err
	}
	srv := web.NewServer(stores, bus, collector, web.Options{
		CSRFKey:             csrfKey,
		SecureCookies:       cfg.IsProduction(),
		TrustedOrigins:      cfg.HTTP.AllowedOrigins,
		AdminIDs:            cfg.HTTP.AdminIDs,
		RateLimitPerSecond:  cfg.HTTP.RateLimitPerSecond,
		SlowRequestMs:       cfg.Perf.SlowRequestMs,
		PageSize:            cfg.HTTP.PageSize,
		MessageLimit:        cfg.Subs.MessageLimit,
		MarkReadConcurrency: cfg.Subs.MarkReadConcurrency,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Vortex %s starting on %s (env=%s)", version, cfg.Server.Addr, cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		slog.Info("server_event", "event", "shutting_down")
		// Live sockets are hijacked and not tracked by Shutdown; closing the
		// bus ends their subscriptions, which closes the sockets.
		bus.Close()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadCSRFKey uses the configured secret. Outside production a random key
// is generated per startup.
func loadCSRFKey(cfg config.Config) ([]byte, error) {
	if len(cfg.HTTP.CSRFKey) >= 32 {
		return []byte(cfg.HTTP.CSRFKey)[:32], nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	log.Println("WARNING: using random CSRF key (tokens won't survive restart). Set VORTEX_HTTP_CSRF_KEY for production.")
	return key, nil
}
