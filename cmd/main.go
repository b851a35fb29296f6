package main

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vnkhanh/comuni-server/config"
	"github.com/vnkhanh/comuni-server/controllers"
	"github.com/vnkhanh/comuni-server/middleware"
	"github.com/vnkhanh/comuni-server/notify"
	"github.com/vnkhanh/comuni-server/routes"
	"github.com/vnkhanh/comuni-server/services"
	"github.com/vnkhanh/comuni-server/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	setupLogging(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			AttachStacktrace: true,
		}); err != nil {
			log.WithError(err).Warn("sentry init failed, continuing without it")
		}
		defer sentry.Flush(2 * time.Second)
	}

	// DB + AutoMigrate
	db, err := config.ConnectDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}

	deps := services.Deps{
		DB:       db,
		Location: utils.LoadLocation(cfg.Timezone),
		Policy:   buildPolicy(cfg),
	}
	if cfg.Redis.Enabled {
		rn := notify.NewRedisNotifier(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rn.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unreachable, notifications will be retried per publish")
		}
		cancel()
		defer rn.Close()
		deps.Notifier = rn
	}
	if cfg.SupabaseEnabled() {
		deps.Covers = utils.NewSupabaseStorage(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Bucket)
	} else {
		log.Warn("SUPABASE_URL/SUPABASE_KEY not set, cover uploads are disabled")
	}
	svc := services.New(deps)

	if cfg.RepairOwnersOnStart {
		report, err := svc.Roles.RepairOwnerships(context.Background())
		if err != nil {
			log.WithError(err).Error("owner repair failed")
		} else {
			log.WithField("groups", report.Groups).Info("owner repair finished")
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderTimezone},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(nil); err != nil {
		log.WithError(err).Fatal("cannot configure trusted proxies")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst, 5*time.Minute)
	defer limiter.Stop()

	routes.SetupRoutes(r, controllers.NewHandler(svc, db), svc, routes.Options{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
	})

	log.WithField("port", cfg.Port).Info("server listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Error("server stopped")
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func buildPolicy(cfg *config.Config) services.Policy {
	p := services.Policy{
		AutoApproveGroups: cfg.GroupApproval == "auto",
		GroupApprovers:    make(map[uuid.UUID]bool),
		ListOrder:         cfg.GroupListOrder,
		RecheckAdmin:      cfg.RecheckAdmin,
		StrictMembership:  cfg.StrictMembership,
	}
	for _, raw := range cfg.GroupApproverIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			log.WithField("value", raw).Warn("ignoring invalid GROUP_APPROVER_IDS entry")
			continue
		}
		p.GroupApprovers[id] = true
	}
	return p
}
