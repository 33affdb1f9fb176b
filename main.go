package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"nikwetu/admin"
	"nikwetu/analytics"
	"nikwetu/api"
	"nikwetu/auth"
	"nikwetu/blog"
	"nikwetu/cache"
	"nikwetu/common"
	"nikwetu/config"
	"nikwetu/content"
	"nikwetu/database"
	"nikwetu/email"
	"nikwetu/media"
	"nikwetu/site"
	"nikwetu/store"
	"nikwetu/views"
)

func main() {
	cfg := config.Load()
	common.SetupLogger(cfg.GinMode)
	gin.SetMode(cfg.GinMode)

	db, err := common.ConnectDb(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	provider := authProvider(cfg, db)
	storage, err := mediaStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up image storage")
	}

	postStore := store.New(db)
	tracker := analytics.NewTracker(postStore)
	reader := content.NewReader(postStore, tracker)
	pages := cache.New(cfg.CacheDir, cfg.CacheMaxAge)

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatal().Err(err).Msg("Invalid TRUSTED_PROXIES")
	}
	router.Use(common.Recovery(), common.RequestLogger())

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("nikwetu-session", sessionStore))
	router.Use(auth.Provide(provider))

	router.SetHTMLTemplate(views.MustLoad(cfg.Domain))
	router.Static("/public", "./public")
	if disk, ok := storage.(*media.DiskStorage); ok {
		router.Static("/uploads", disk.Dir())
	}

	admin.NewAdminModule(postStore, storage, pages).RegisterRoutes(router)
	api.NewApiModule(reader, cfg.CorsAllowedOrigins).RegisterRoutes(router)
	site.NewSiteModule(reader, email.NewEmailService(cfg), pages, cfg.Domain).RegisterRoutes(router)
	blog.NewBlogModule(reader, pages, cfg.Domain).RegisterRoutes(router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepCache(ctx, pages)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown")
	}
	tracker.Wait()
}

func authProvider(cfg config.Config, db *gorm.DB) auth.Provider {
	if cfg.AuthProvider != "local" {
		return auth.NewGoTrue(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseJWTSecret)
	}

	local := auth.NewLocal(db, cfg.SessionSecret)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		_, err := local.CreateUser(context.Background(), cfg.AdminEmail, cfg.AdminPassword)
		switch {
		case errors.Is(err, auth.ErrUserExists):
		case err != nil:
			log.Fatal().Err(err).Msg("Failed to create admin user")
		default:
			log.Info().Str("email", cfg.AdminEmail).Msg("Created admin user")
		}
	}
	return local
}

func mediaStorage(cfg config.Config) (media.Storage, error) {
	switch cfg.StorageDriver {
	case "s3":
		return media.NewS3Storage(media.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.StorageBucket,
			PublicBase:      cfg.SupabaseURL + "/storage/v1/object/public",
		}), nil
	case "cloudinary":
		return media.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.StorageBucket)
	default:
		return media.NewDiskStorage(cfg.UploadDir, "/uploads")
	}
}

// sweepCache drops expired page cache files until ctx is done.
func sweepCache(ctx context.Context, pages *cache.Store) {
	if !pages.Enabled() {
		return
	}
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pages.ClearOld(); err != nil {
				log.Warn().Err(err).Msg("Cache sweep failed")
			}
		}
	}
}
