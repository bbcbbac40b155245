package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/contentkit/importer/internal/config"
	"github.com/contentkit/importer/internal/database"
	"github.com/contentkit/importer/internal/importer"
	"github.com/contentkit/importer/internal/middleware"
	"github.com/contentkit/importer/internal/modules/locale"
	"github.com/contentkit/importer/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	importer *importer.Importer
	cache    *store.IdentityCache
	logger   *zap.Logger
}

// New initializes the application: config → DB → cache → importer → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var cache *store.IdentityCache
	if cfg.RedisURL != "" {
		cache, err = store.NewIdentityCache(cfg.RedisURL, logger)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	linker, err := locale.Select(cfg.Locale, db)
	if err != nil {
		return nil, err
	}

	imp, err := buildImporter(cfg, db, cache, linker, logger)
	if err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		importer: imp,
		cache:    cache,
		logger:   logger,
	}
	app.registerRoutes()
	return app, nil
}

func buildImporter(cfg *config.AppConfig, db *gorm.DB, cache *store.IdentityCache, linker importer.LocaleLinker, logger *zap.Logger) (*importer.Importer, error) {
	var binary *store.BinaryStore
	if cfg.Storage.Provider == "s3" {
		uploader, err := store.NewS3Uploader(cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		binary = store.NewS3BinaryStore(db, uploader)
	} else {
		binary = store.NewBinaryStore(db, cfg.Storage.StaticDir)
	}

	deps := importer.Deps{
		Content:  store.NewContentStore(db),
		Meta:     store.NewMetaStore(db),
		Binary:   binary,
		Terms:    store.NewTermStore(db),
		Fields:   store.NewFieldStore(db),
		Registry: store.NewRegistry(db, cfg.Import),
		Log:      store.NewImportLogStore(db, cfg.Import.LogTable),
		Linker:   linker,
		Logger:   logger,
	}
	if cache != nil {
		deps.Cache = cache
	}

	opts := importer.Options{
		IDPrefix:         cfg.Import.IDPrefix,
		AttachmentPrefix: cfg.Import.AttachmentPrefix,
		FeaturedMetaKey:  cfg.Import.FeaturedMetaKey,
		HiddenStatus:     cfg.Import.HiddenStatus,
		TrashStatus:      cfg.Import.TrashStatus,
		LogErrors:        cfg.Import.LogErrors,
	}
	return importer.New(opts, deps), nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		c.AllowOrigins = cfg.AllowedOrigins
	} else {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown releases held connections.
func (a *App) Shutdown() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
}
