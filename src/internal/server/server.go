package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	echoMiddleware "github.com/casapps/casrecipes/src/internal/api/middleware"
	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/cache"
	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/logging"
	"github.com/casapps/casrecipes/src/internal/media"
	"github.com/casapps/casrecipes/src/internal/services"
)

// Server represents the main application server
type Server struct {
	echo      *echo.Echo
	config    *viper.Viper
	db        *gorm.DB
	cache     *cache.CacheManager
	auth      *auth.AuthService
	media     *media.Store
	startTime time.Time

	membership  *services.MembershipFilter
	users       *services.UserService
	tags        *services.TagService
	ingredients *services.IngredientService
	recipes     *services.RecipeService
	cart        *services.ShoppingCartService
}

// New creates a new server instance wired to db and cacheManager
func New(cfg *viper.Viper, db *gorm.DB, cacheManager *cache.CacheManager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.GetBool("debug")
	e.JSONSerializer = JSONSerializer{}
	e.Validator = NewEchoValidator()
	e.HTTPErrorHandler = errors.NewErrorHandler(!cfg.GetBool("debug")).HTTPErrorHandler

	e.Server.ReadTimeout = cfg.GetDuration("server.read_timeout")
	e.Server.WriteTimeout = cfg.GetDuration("server.write_timeout")

	authService := auth.NewAuthService(
		cfg.GetString("security.secret_key"),
		"casrecipes",
		cfg.GetDuration("security.token_ttl"),
		cacheManager,
	)
	mediaStore := media.NewStore(cfg)
	membership := services.NewMembershipFilter(db)

	s := &Server{
		echo:        e,
		config:      cfg,
		db:          db,
		cache:       cacheManager,
		auth:        authService,
		media:       mediaStore,
		startTime:   time.Now(),
		membership:  membership,
		users:       services.NewUserService(db, cfg, membership),
		tags:        services.NewTagService(db, cacheManager),
		ingredients: services.NewIngredientService(db, cacheManager),
		recipes:     services.NewRecipeService(db, cfg, membership, mediaStore),
		cart:        services.NewShoppingCartService(db),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP lets the server be mounted or driven by httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves HTTP on address until Shutdown is called
func (s *Server) Start(address string) error {
	logging.Info().Str("address", address).Msg("server listening")
	if err := s.echo.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(echoMiddleware.RequestID())
	s.echo.Use(echoMiddleware.RequestLogger())
	s.echo.Use(echoMiddleware.Metrics())
	s.echo.Use(echoMiddleware.Security(s.config))
	s.echo.Use(echoMiddleware.CORS(s.config))
	s.echo.Use(echoMiddleware.RateLimit(s.config))
	s.echo.Use(middleware.BodyLimit(s.config.GetString("server.body_limit")))
}
