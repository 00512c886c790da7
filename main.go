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
	"github.com/gogotex/newsdesk/handlers"
	"github.com/gogotex/newsdesk/internal/config"
	"github.com/gogotex/newsdesk/internal/content/cache"
	"github.com/gogotex/newsdesk/internal/content/handler"
	"github.com/gogotex/newsdesk/internal/content/repository"
	"github.com/gogotex/newsdesk/internal/content/sanitize"
	"github.com/gogotex/newsdesk/internal/content/service"
	"github.com/gogotex/newsdesk/internal/database"
	"github.com/gogotex/newsdesk/internal/oidc"
	"github.com/gogotex/newsdesk/internal/revocation"
	"github.com/gogotex/newsdesk/internal/storage"
	"github.com/gogotex/newsdesk/internal/tokens"
	"github.com/gogotex/newsdesk/pkg/logger"
	"github.com/gogotex/newsdesk/pkg/metrics"
	"github.com/gogotex/newsdesk/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Addr() != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, mongoClient := openStore(ctx, cfg)
	if mongoClient != nil {
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	}
	repo := repository.New(store, repository.WithCollectionNames(cfg.Content.CanonicalCollection, cfg.Content.LegacyCollection))
	if ms, ok := store.(*repository.MongoStore); ok {
		if err := ms.EnsureIndexes(ctx, repo.IndexSpecs()); err != nil {
			logger.Warnf("ensure indexes: %v", err)
		}
	}

	opts := []service.Option{
		service.WithSanitizer(sanitize.New(sanitize.WithTitleMax(cfg.Content.TitleSanitizeMax))),
	}

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v; eligibility cache disabled", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
			opts = append(opts, service.WithCache(cache.NewRedisCache(rdb, cfg.Content.EligibilityCacheTTL)))
			logger.Infof("eligibility cache on Redis %s (ttl %s)", addr, cfg.Content.EligibilityCacheTTL)
		}
	}

	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("MinIO unavailable, issue export disabled: %v", err)
		} else {
			opts = append(opts, service.WithExporter(storage.NewIssueExporter(ms, cfg.MinIO.PresignTTL)))
		}
	}

	svc := service.New(repo, opts...)
	verifier := newVerifier(ctx, cfg)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the content store answers and auth is wired
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{
			"store": true,
			"auth":  verifier != nil,
			"cache": rdb != nil || cfg.Redis.Addr() == "",
		}
		if mongoClient != nil {
			pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			deps["store"] = mongoClient.Ping(pctx, nil) == nil
			cancel()
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	var revocations *revocation.Store
	if rdb != nil {
		revocations = revocation.NewStore(rdb)
	}
	if verifier != nil {
		var authOpts []middleware.AuthOption
		if revocations != nil {
			authOpts = append(authOpts, middleware.WithRevocationCheck(revocations))
		}
		api.Use(middleware.AuthMiddleware(verifier, authOpts...))
	} else {
		api.Use(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication is not configured"})
		})
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			api.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	handler.RegisterContentRoutes(api, svc)
	if revocations != nil {
		handlers.RegisterRevocationRoutes(api, revocations, cfg.JWT.RevocationTTL)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		logger.Infof("Starting content service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Errorf("forced shutdown: %v", err)
	}
}

// openStore prefers MongoDB and falls back to the in-memory store when no
// URI is configured or the database never comes up.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, *mongo.Client) {
	if cfg.MongoDB.URI == "" {
		return repository.NewMemoryStore(), nil
	}
	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
	if err != nil {
		logger.Warnf("cannot connect to MongoDB (%v); using in-memory store", err)
		return repository.NewMemoryStore(), nil
	}
	db := client.Database(cfg.MongoDB.Database)
	return repository.NewMongoStore(db, repository.WithRequireIndexes(cfg.Content.RequireIndexes)), client
}

// newVerifier picks Keycloak when configured, then the shared HS256 secret,
// then the insecure claims reader if explicitly enabled.
func newVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	if cfg.Keycloak.URL != "" {
		issuer := oidc.KeycloakIssuer(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err == nil {
			logger.Infof("verifying tokens against %s", issuer)
			return ver
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if cfg.JWT.Secret != "" {
		logger.Infof("verifying HS256 service tokens")
		return tokens.NewHMACVerifier(cfg.JWT.Secret)
	}
	if cfg.Keycloak.Insecure {
		logger.Warn("enabling insecure token verifier (development mode)")
		return oidc.NewInsecureVerifier()
	}
	return nil
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
