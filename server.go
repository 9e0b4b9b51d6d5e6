package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/config"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/database"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/handler"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/repository"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/service"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/locks"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/oidc"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/pdfengine"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/realtime"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/sessions"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/storage"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/users"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/metrics"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/middleware"
)

var startTime = time.Now()

// files is what both the engine and the upload path need from storage.
type files interface {
	pdfengine.Storage
	service.Files
}

// dependencies are the process-wide backends chosen from config. Every
// backend has an in-process fallback so the service runs without
// infrastructure in development.
type dependencies struct {
	store    repository.Store
	files    files
	users    *users.Service
	verifier middleware.Verifier
	redis    *redis.Client
	audit    service.AuditLogger
	events   service.EventPublisher
	locker   locks.Locker
	grants   *sessions.Service
	seal     *pdfengine.Seal
	closers  []func()
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func connect(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	d := &dependencies{
		store:  repository.NewMemoryRepo(),
		files:  storage.NewMemoryStorage(),
		users:  users.NewService(users.NewMemoryUserRepository()),
		audit:  audit.Noop{},
		events: realtime.Noop{},
		locker: locks.NewMemory(),
		grants: sessions.NewService(sessions.NewMemoryRepository(), cfg.Signing.UnlockTTL),
	}

	if cfg.MongoDB.URI != "" {
		db, disconnect, err := database.Connect(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = disconnect(context.Background()) })
		d.store = repository.NewMongoRepo(db)
		d.users = users.NewService(users.NewMongoUserRepository(db.Collection("users")))
		d.audit = audit.NewMongoLogger(db.Collection("audit_logs"))
		logger.Infof("using MongoDB database %s", cfg.MongoDB.Database)
	} else {
		logger.Warnf("MONGODB_URI not set; documents are kept in memory")
	}

	if addr := cfg.Redis.Addr(); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("redis ping %s: %w", addr, err)
		}
		d.closers = append(d.closers, func() { _ = rc.Close() })
		d.redis = rc
		d.locker = locks.NewRedis(rc, "lock:")
		d.events = realtime.NewRedisPublisher(rc, "events:")
		d.grants = sessions.NewService(sessions.NewRedisRepository(rc, "unlock:"), cfg.Signing.UnlockTTL)
		logger.Infof("using Redis at %s for locks, events and unlock grants", addr)
	}

	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(&storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
			PublicURL: cfg.MinIO.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		d.files = ms
	}

	seal, err := pdfengine.LoadSeal(cfg.Signing.SealCertPath, cfg.Signing.SealKeyPath, cfg.Signing.SealCommonName)
	if err != nil {
		return nil, err
	}
	d.seal = seal

	if issuer := cfg.Keycloak.Issuer(); issuer != "" {
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			return nil, err
		}
		d.verifier = ver
	} else {
		d.verifier = oidc.NewHS256Verifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	}
	return d, nil
}

func newService(cfg *config.Config, d *dependencies) *service.Service {
	engine := pdfengine.New(d.files, pdfengine.NewSealStamper(d.seal, cfg.Signing.SealLocation))
	return service.New(d.store, engine, d.files, d.users, service.Config{
		VerifyBaseURL: cfg.Signing.VerifyBaseURL,
		RequirePIN:    cfg.Signing.RequirePIN,
		BcryptCost:    cfg.Signing.BcryptCost,
		LockTTL:       cfg.Signing.LockTTL,
	},
		service.WithAudit(d.audit),
		service.WithEvents(d.events),
		service.WithLocker(d.locker),
		service.WithGrants(d.grants),
	)
}

func limiter(cfg *config.Config, d *dependencies, name string, rps float64, burst int) gin.HandlerFunc {
	if cfg.RateLimit.UseRedis {
		return middleware.RedisRateLimitMiddleware(d.redis, name, rps, burst, cfg.RateLimit.Window)
	}
	return middleware.RateLimitMiddleware(name, rps, burst)
}

func newRouter(cfg *config.Config, d *dependencies) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	r.GET("/ready", readiness(d))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	handler.RegisterDocs(r)

	h := handler.New(newService(cfg, d))
	upsertUser := func(ctx context.Context, claims map[string]interface{}) {
		if _, err := d.users.UpsertFromClaims(ctx, claims); err != nil {
			logger.Warnf("upsert user from claims: %v", err)
		}
	}
	api := r.Group("/api")
	signing := api.Group("", middleware.AuthMiddleware(d.verifier, upsertUser))
	var verifyMW []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		signing.Use(limiter(cfg, d, "api", cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		verifyMW = append(verifyMW, limiter(cfg, d, "verify", cfg.RateLimit.VerifyRPS, cfg.RateLimit.VerifyBurst))
	}
	h.RegisterSigningRoutes(signing)
	h.RegisterVerifyRoutes(api, verifyMW...)
	return r
}

func readiness(d *dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := gin.H{"redis": true}
		status := http.StatusOK
		if d.redis != nil {
			if err := d.redis.Ping(c.Request.Context()).Err(); err != nil {
				deps["redis"] = false
				status = http.StatusServiceUnavailable
			}
		}
		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
