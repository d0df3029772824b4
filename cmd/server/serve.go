package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc/credentials"

	"github.com/and161185/bookswap/internal/config"
	"github.com/and161185/bookswap/internal/limiter"
	"github.com/and161185/bookswap/internal/migrate"
	"github.com/and161185/bookswap/internal/repository"
	"github.com/and161185/bookswap/internal/repository/memory"
	"github.com/and161185/bookswap/internal/repository/postgres"
	grpcserver "github.com/and161185/bookswap/internal/server/grpc"
	httpserver "github.com/and161185/bookswap/internal/server/http"
	"github.com/and161185/bookswap/internal/service"
)

const (
	shutdownTimeout = 5 * time.Second
	pingInterval    = 10 * time.Second
)

type serveFlags struct {
	httpAddr   string
	opsAddr    string
	store      string
	dsn        string
	jwtSecret  string
	sessionTTL time.Duration
	tlsCert    string
	tlsKey     string
}

func newServeCmd(envFile *string) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the gRPC health listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			log.Info("starting",
				zap.String("version", version),
				zap.String("buildDate", buildDate),
				zap.String("env", cfg.Env),
				zap.String("store", cfg.Store),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.httpAddr, "addr", "", "HTTP listen address")
	fs.StringVar(&f.opsAddr, "ops-addr", "", "gRPC health listen address (empty disables)")
	fs.StringVar(&f.store, "store", "", "storage backend: postgres or memory")
	fs.StringVar(&f.dsn, "dsn", "", "PostgreSQL DSN")
	fs.StringVar(&f.jwtSecret, "jwt-secret", "", "HS256 session signing key")
	fs.DurationVar(&f.sessionTTL, "session-ttl", 0, "session lifetime")
	fs.StringVar(&f.tlsCert, "tls-cert", "", "TLS certificate for the ops listener (PEM)")
	fs.StringVar(&f.tlsKey, "tls-key", "", "TLS private key for the ops listener (PEM)")
	return cmd
}

// apply overrides cfg with the flags given on the command line.
func (f serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("addr", &cfg.HTTPAddr, f.httpAddr)
	set("ops-addr", &cfg.OpsAddr, f.opsAddr)
	set("store", &cfg.Store, f.store)
	set("dsn", &cfg.DSN, f.dsn)
	set("jwt-secret", &cfg.JWTSecret, f.jwtSecret)
	set("tls-cert", &cfg.TLSCert, f.tlsCert)
	set("tls-key", &cfg.TLSKey, f.tlsKey)
	if fs.Changed("session-ttl") {
		cfg.SessionTTL = f.sessionTTL
	}
}

type backend struct {
	users     repository.UserRepository
	books     repository.BookRepository
	exchanges repository.ExchangeRepository
	lim       limiter.Limiter
	pinger    grpcserver.Pinger
	close     func()
}

// openBackend selects the store; the postgres store is migrated before use.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	policy := limiter.Policy{
		Window:   cfg.LimiterWindow,
		MaxFails: cfg.LimiterMaxFails,
		BlockFor: cfg.LimiterBlockFor,
	}
	if cfg.Store == config.StoreMemory {
		s := memory.NewStore()
		return &backend{
			users:     memory.NewUserRepo(s),
			books:     memory.NewBookRepo(s),
			exchanges: memory.NewExchangeRepo(s),
			lim:       limiter.NewMemory(policy),
			pinger:    s,
			close:     s.Close,
		}, nil
	}

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &backend{
		users:     postgres.NewUserRepo(db),
		books:     postgres.NewBookRepo(db),
		exchanges: postgres.NewExchangeRepo(db),
		lim:       limiter.NewPG(db.Pool, policy),
		pinger:    db,
		close:     db.Close,
	}, nil
}

func signingKey(cfg config.Config, log *zap.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	// only reachable in development, see Config.Validate
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	log.Warn("no jwt secret configured, sessions will not survive a restart")
	return key, nil
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	key, err := signingKey(cfg, log)
	if err != nil {
		return err
	}

	dir := service.NewUserDirectory(be.users)
	auth := service.NewAuthService(be.users, key, cfg.SessionTTL, be.lim, log.Named("auth"))
	catalog := service.NewCatalog(be.books, be.exchanges, dir, log.Named("catalog"))
	coord := service.NewCoordinator(be.books, be.exchanges, dir, log.Named("exchange"))

	app := httpserver.New(httpserver.NewHandler(auth, catalog, coord, log.Named("http"), httpserver.Options{
		CORSOrigins:  cfg.CORSOrigins,
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL,
	}))

	errCh := make(chan error, 2)

	var ops *grpcserver.Ops
	if cfg.OpsAddr != "" {
		opts := grpcserver.Options{Reflection: cfg.Dev()}
		if cfg.TLSCert != "" {
			creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return fmt.Errorf("load tls cert/key: %w", err)
			}
			opts.Creds = creds
		}
		lis, err := net.Listen("tcp", cfg.OpsAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.OpsAddr, err)
		}
		ops = grpcserver.NewOps(log.Named("ops"), opts)
		go ops.Monitor(ctx, be.pinger, pingInterval)
		go func() {
			log.Info("ops listening", zap.String("addr", cfg.OpsAddr), zap.Bool("tls", opts.Creds != nil))
			errCh <- ops.Serve(lis)
		}()
	}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		log.Error("server error", zap.Error(serveErr))
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if ops != nil {
		ops.Shutdown(sctx)
	}
	log.Info("shutdown complete")
	return serveErr
}
