package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/finlix/backend/config"
	"github.com/finlix/backend/internal/api/handlers"
	"github.com/finlix/backend/internal/api/middleware"
	"github.com/finlix/backend/internal/api/routes"
	"github.com/finlix/backend/internal/cache"
	"github.com/finlix/backend/internal/events"
	"github.com/finlix/backend/internal/identity"
	"github.com/finlix/backend/internal/logger"
	"github.com/finlix/backend/internal/obs"
	"github.com/finlix/backend/internal/repositories"
	"github.com/finlix/backend/internal/repositories/memory"
	mongorepo "github.com/finlix/backend/internal/repositories/mongo"
	pgrepo "github.com/finlix/backend/internal/repositories/postgres"
	"github.com/finlix/backend/internal/services"
	"github.com/finlix/backend/internal/storage"
	"github.com/finlix/backend/internal/workers"
)

const (
	serviceName    = "finlix-backend"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, serviceVersion, cfg.ServiceEnv, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	userRepo, loanRepo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := config.NewRedis(ctx, cfg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	var (
		userCache cache.Cache      = cache.Nop{}
		publisher events.Publisher = events.Nop{}
	)
	if rdb != nil {
		defer rdb.Close()
		log.Info("Redis connected")
		userCache = cache.NewRedisCache(rdb, "finlix:")
		publisher = events.NewStreamPublisher(rdb, cfg.EventsStream, 0)
		if err := startNotifier(ctx, rdb, cfg, log); err != nil {
			return err
		}
	} else {
		log.Warn("REDIS_ADDR not set; user cache and loan events disabled")
	}

	var uploads storage.Uploader
	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			return fmt.Errorf("gcs: %w", err)
		}
		defer gcs.Close()
		uploads = gcs
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	table, err := cfg.PolicyTable()
	if err != nil {
		return err
	}

	userSvc := services.NewUserService(userRepo, userCache, cfg.UserCacheTTL, log)
	loanSvc := services.NewLoanService(loanRepo, cfg.LoanRules(), publisher, log)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Tracing(serviceName), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Guard:   middleware.Guard{Table: table, Verifier: verifier, Roles: userSvc, Logger: log},
		Users:   handlers.NewUserHandler(userSvc, handlers.RegistrationMode(cfg.RegistrationMode)),
		Profile: handlers.NewProfileHandler(userSvc, uploads),
		Loans:   handlers.NewLoanHandler(loanSvc, userSvc),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithFields(logrus.Fields{"port": cfg.Port, "store": cfg.StoreDriver, "auth": cfg.AuthMode}).Info("finlix listening")
	return serve(ctx, stop, srv, log)
}

// serve runs srv until ctx is done. A listen failure cancels ctx through stop
// so background workers wind down before deferred clients close.
func serve(ctx context.Context, stop context.CancelFunc, srv *http.Server, log *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log *logrus.Logger) (repositories.UserRepository, repositories.LoanRepository, func(), error) {
	switch cfg.StoreDriver {
	case "mongo":
		client, err := config.NewMongo(ctx, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mongo: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		if err := config.EnsureMongoIndexes(ctx, db); err != nil {
			log.WithError(err).Warn("mongo index setup failed")
		}
		log.Info("MongoDB connected")
		closeFn := func() {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(c)
		}
		return mongorepo.NewUserRepo(db), mongorepo.NewLoanRepo(db), closeFn, nil

	case "postgres":
		db, err := config.NewPostgres(cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pgrepo.Migrate(db); err != nil {
			return nil, nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		log.Info("PostgreSQL connected")
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return pgrepo.NewUserRepo(db), pgrepo.NewLoanRepo(db), closeFn, nil

	default:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewUserRepo(), memory.NewLoanRepo(), func() {}, nil
	}
}

func newVerifier(cfg config.Config) (identity.Verifier, error) {
	if cfg.AuthMode == "hmac" {
		v, err := identity.NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	v, err := identity.NewFirebaseVerifier(cfg.FirebaseProjectID, nil)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func startNotifier(ctx context.Context, rdb *redis.Client, cfg config.Config, log *logrus.Logger) error {
	pool := &workers.NotificationWorkerPool{
		Redis:      rdb,
		Notifier:   workers.LogNotifier{Logger: log},
		NumWorkers: cfg.EventsWorkers,
		Logger:     log,
		Stream:     cfg.EventsStream,
	}
	return pool.Start(ctx)
}
