package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finitefield.org/bloomcare-web/internal/admin"
	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/catalog"
	"finitefield.org/bloomcare-web/internal/config"
	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/format"
	"finitefield.org/bloomcare-web/internal/httpserver"
	"finitefield.org/bloomcare-web/internal/observability"
	"finitefield.org/bloomcare-web/internal/session"
)

func main() {
	logger := observability.NewLogger(os.Stdout).Named("storefront")
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	domain.CurrencyPlaces = format.Scale(cfg.Display.Currency)

	client := backend.NewClient(cfg.Backend.URL, backend.WithTimeout(cfg.Backend.Timeout))
	source, err := catalogSource(cfg, client, logger)
	if err != nil {
		logger.Fatal("failed to initialise catalog", zap.Error(err))
	}
	loader, err := catalog.NewLoader(source, cfg.Catalog.ProductCacheSize)
	if err != nil {
		logger.Fatal("failed to initialise catalog cache", zap.Error(err))
	}

	hashKey, blockKey := sessionKeys(cfg.Session, logger)
	sessions, err := session.NewManager(session.Config{
		HashKey:      hashKey,
		BlockKey:     blockKey,
		CookieSecure: cfg.Server.Production(),
		Lifetime:     cfg.Session.CookieLifetime,
	})
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}
	controller := session.NewController(session.Timings{
		Warning:  cfg.Session.Warning,
		Lifetime: cfg.Session.Lifetime,
		Throttle: cfg.Session.Throttle,
	}, nil)

	confirmer, err := admin.NewConfirmer(hashKey, 0, nil)
	if err != nil {
		logger.Fatal("failed to initialise admin confirmer", zap.Error(err))
	}

	srv, err := httpserver.NewServer(httpserver.Config{
		Address:          net.JoinHostPort("", cfg.Server.Port),
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		RequestTimeout:   cfg.Server.RequestTimeout,
		PageSize:         cfg.Catalog.PageSize,
		CarouselSize:     cfg.Catalog.CarouselSize,
		CarouselInterval: cfg.Catalog.CarouselInterval,
		Currency:         cfg.Display.Currency,
		Locale:           cfg.Display.Locale,
		SuperAdminEmail:  cfg.Admin.SuperAdminEmail,
	}, httpserver.Deps{
		Logger:     logger,
		Backend:    client,
		Catalog:    loader,
		Sessions:   sessions,
		Controller: controller,
		Panel:      admin.NewPanel(source, loader, cfg.Catalog.AdminPageSize),
		Confirmer:  confirmer,
	})
	if err != nil {
		logger.Fatal("failed to initialise http server", zap.Error(err))
	}
	server := srv.HTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("storefront listening",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.Server.Environment),
			zap.Bool("backend", client.Configured()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("storefront stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("storefront stopped")
}

// catalogSource serves products from the backend, or from the static catalog when no backend
// URL is configured.
func catalogSource(cfg config.Config, client *backend.Client, logger *zap.Logger) (catalog.Source, error) {
	if client.Configured() {
		return client, nil
	}
	newID := func() string { return ulid.Make().String() }
	if cfg.Catalog.StaticFile != "" {
		logger.Info("backend not configured; serving static catalog file", zap.String("path", cfg.Catalog.StaticFile))
		static, err := catalog.LoadStaticFile(cfg.Catalog.StaticFile, newID)
		if err != nil {
			return nil, err
		}
		return static, nil
	}
	logger.Warn("backend not configured; serving default catalog")
	return catalog.NewStaticSource(catalog.DefaultProducts(newID)), nil
}

// sessionKeys returns the configured cookie keys. Outside production missing keys are
// generated per process, which signs every device out on restart.
func sessionKeys(cfg config.SessionConfig, logger *zap.Logger) ([]byte, []byte) {
	hashKey := []byte(cfg.HashKey)
	blockKey := []byte(cfg.BlockKey)
	if len(hashKey) == 0 {
		logger.Warn("STOREFRONT_SESSION_HASH_KEY not set; using an ephemeral key")
		hashKey = randomKey(32)
	}
	if len(blockKey) == 0 {
		logger.Warn("STOREFRONT_SESSION_BLOCK_KEY not set; using an ephemeral key")
		blockKey = randomKey(32)
	}
	return hashKey, blockKey
}

func randomKey(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("generate session key: %v", err))
	}
	return buf
}
