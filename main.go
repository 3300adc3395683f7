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
	"github.com/personalfinance/finance/backend/go-scheduler/handlers"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/analytics"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/archive"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/auth"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/config"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/database"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation/repository"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/schedule"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/schedule/handler"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/logger"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/metrics"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v",
		cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, "+handler.TierHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	var deps []handlers.Dependency

	// Local tier: Redis when reachable, process memory otherwise.
	var rdb *redis.Client
	var kv repository.KV
	if cfg.Redis.Host != "" {
		rdb, err = database.ConnectRedis(ctx, database.RedisOptions{
			Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		}, 3*time.Second)
		if err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
		} else {
			defer rdb.Close()
			kv = repository.NewRedisKV(rdb)
			deps = append(deps, handlers.Dependency{Name: "local", Required: true, Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}})
			logger.Infof("local tier: redis %s", cfg.Redis.Addr())
		}
	}
	if kv == nil {
		logger.Warnf("local tier: in-memory store; data is lost on restart")
		kv = repository.NewMemoryKV()
	}
	local := repository.NewCacheRepo(kv, cfg.Redis.KeyPrefix)

	// Remote tier: optional. An unreachable server at startup still gets a
	// lazily dialing client so calls resume reaching it once it is back.
	var remote repository.Repository
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("MongoDB unreachable at startup, requests fall back to the local tier until it recovers: %v", err)
			client, err = database.NewMongoClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		}
		if err != nil {
			logger.Warnf("remote tier disabled: %v", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			mrepo := repository.NewMongoRepo(client.Database(cfg.MongoDB.Database))
			go ensureIndexes(ctx, mrepo, cfg.MongoDB.Timeout)
			remote = mrepo
			deps = append(deps, handlers.Dependency{Name: "remote", Check: func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			}})
			logger.Infof("remote tier: mongodb database %s", cfg.MongoDB.Database)
		}
	}

	store := schedule.NewStore(repository.NewFallback(remote, local),
		schedule.WithAnalytics(analytics.Options{
			DueSoonDays:   cfg.Analytics.DueSoonDays,
			TopCategories: cfg.Analytics.TopCategories,
		}),
		schedule.WithUpcomingDays(cfg.Analytics.UpcomingDays),
	)

	// Token verification: Keycloak first, then locally issued HMAC tokens.
	var chain auth.Chain
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		issuer := cfg.Keycloak.URL
		if cfg.Keycloak.Realm != "" {
			issuer = auth.IssuerURL(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		}
		ver, err := auth.NewOIDCVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if cfg.JWT.Secret != "" {
		chain = append(chain, auth.NewHMACVerifier(cfg.JWT.Secret))
	}
	if len(chain) == 0 && cfg.Keycloak.AllowInsecureToken {
		logger.Warnf("enabling insecure token verifier (integration mode)")
		chain = append(chain, auth.NewUnverifiedVerifier())
	}
	verifierReady := len(chain) > 0
	deps = append(deps, handlers.Dependency{Name: "auth", Required: true, Check: func(context.Context) error {
		if !verifierReady {
			return errors.New("no token verifier")
		}
		return nil
	}})

	var exporter handler.Exporter
	if cfg.MinIO.Endpoint != "" {
		st, err := archive.NewMinIOStorage(ctx, archive.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			logger.Warnf("exports disabled: %v", err)
		} else {
			exporter = archive.NewExporter(store, st, cfg.MinIO.PresignTTL)
			deps = append(deps, handlers.Dependency{Name: "archive"})
		}
	}

	handlers.RegisterHealth(r, startTime, deps)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/")
	api.Use(middleware.AuthMiddleware(chain))
	// rate limiting runs after auth so authenticated callers are keyed by owner
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			api.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	handler.RegisterRoutes(api, store, exporter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting scheduler on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// ensureIndexes retries index creation until it succeeds or ctx ends.
func ensureIndexes(ctx context.Context, repo *repository.MongoRepo, timeout time.Duration) {
	wait := time.Second
	for {
		ictx, cancel := context.WithTimeout(ctx, timeout)
		err := repo.EnsureIndexes(ictx)
		cancel()
		if err == nil {
			logger.Infof("MongoDB indexes ensured")
			return
		}
		logger.Warnf("failed to ensure MongoDB indexes, retrying in %s: %v", wait, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if wait < time.Minute {
			wait *= 2
		}
	}
}
