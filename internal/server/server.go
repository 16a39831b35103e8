// Package server contains the HTTP handlers and routing for the blog.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "yatube/docs" // swagger docs
	"yatube/internal/bootstrap"
	"yatube/internal/config"
	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/repository"
	"yatube/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	auth           *middleware.Auth
	throttle       *middleware.Throttler
	images         *service.ImageService
	postService    *service.PostService
	commentService *service.CommentService
	followService  *service.FollowService
	userService    *service.UserService
}

// NewServer connects to the database and Redis and builds the server. Outside
// production the built-in groups are ensured on startup.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedGroups: !cfg.IsProduction()})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: caching, rate limiting and token revocation are then
// disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)

	images := service.NewImageService(cfg)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("yatube"),
		auth:           middleware.NewAuth(cfg, redisClient),
		throttle:       middleware.NewThrottler(redisClient, middleware.EnforceQuotas(cfg.Env)),
		images:         images,
		commentService: service.NewCommentService(commentRepo, postRepo),
		followService:  service.NewFollowService(userRepo, followRepo),
		userService:    service.NewUserService(userRepo),
	}
	s.postService = service.NewPostService(service.PostServiceDeps{
		Posts:         postRepo,
		Groups:        groupRepo,
		Users:         userRepo,
		Comments:      commentRepo,
		Follows:       followRepo,
		Images:        images,
		PageSize:      cfg.PageSize,
		IndexCacheTTL: cfg.IndexCacheTTL(),
	})
	return s, nil
}

// NewApp returns a Fiber app with the middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Yatube",
		BodyLimit:    (s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024,
		UnescapePath: true,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Token resolution runs before ContextMiddleware so log lines carry the user.
	app.Use(s.auth.Authenticate())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected responses still carry its headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: s.config.AllowedOrigins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Yatube Metrics Dashboard",
	}))
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Static("/media", s.images.MediaRoot(), fiber.Static{
		MaxAge: 3600,
	})

	loginRequired := s.auth.LoginRequired()

	auth := app.Group("/auth")
	auth.Post("/signup/", s.throttle.Guard(middleware.SignupQuota), s.Signup)
	auth.Get("/login/", s.LoginPage)
	auth.Post("/login/", s.throttle.Guard(middleware.LoginQuota), s.Login)
	auth.Post("/logout/", loginRequired, s.Logout)

	app.Get("/", s.Index)
	app.Get("/group/:slug/", s.GroupPosts)
	app.Get("/follow/", loginRequired, s.FollowIndex)

	app.Get("/create/", loginRequired, s.PostCreateForm)
	app.Post("/create/", loginRequired, s.throttle.Guard(middleware.PostQuota), s.PostCreate)

	// Specific /posts/:id/<action>/ routes before the detail route.
	posts := app.Group("/posts")
	posts.Get("/:id/edit/", loginRequired, s.PostEditForm)
	posts.Post("/:id/edit/", loginRequired, s.PostEdit)
	posts.Post("/:id/comment/", loginRequired, s.throttle.Guard(middleware.CommentQuota), s.AddComment)
	posts.Get("/:id/", s.PostDetail)

	profile := app.Group("/profile")
	profile.Get("/:username/follow/", loginRequired, s.ProfileFollow)
	profile.Get("/:username/unfollow/", loginRequired, s.ProfileUnfollow)
	profile.Get("/:username/", s.Profile)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis reachability. Redis is optional:
// its absence degrades caching but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Run serves the blog until ctx is cancelled, then drains in-flight requests
// for at most grace and closes the database and Redis. It returns the
// listener's error if the port could not be bound.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	app := s.NewApp()
	listenErr := make(chan error, 1)
	go func() {
		middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
		listenErr <- app.Listen(":" + s.config.Port)
	}()

	var err error
	select {
	case err = <-listenErr:
	case <-ctx.Done():
		middleware.Logger.Info("shutting down", slog.Duration("grace", grace))
		drainCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if serr := app.ShutdownWithContext(drainCtx); serr != nil {
			middleware.Logger.Error("http shutdown", slog.String("error", serr.Error()))
		}
	}
	s.close()
	return err
}

func (s *Server) close() {
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			middleware.Logger.Error("close database", slog.String("error", err.Error()))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("close redis", slog.String("error", err.Error()))
		}
	}
	middleware.Logger.Info("server stopped")
}
