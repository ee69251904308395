package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jlrp/internal/config"
	"jlrp/internal/database"
	"jlrp/internal/handlers"
	"jlrp/internal/mailer"
	"jlrp/internal/middleware"
	"jlrp/internal/notify"
	"jlrp/internal/payment"
	"jlrp/internal/repositories"
	"jlrp/internal/services"
	"jlrp/internal/storage"
	"jlrp/internal/throttle"
	"jlrp/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	notificationQueue  = "jlrp.notifications"
	notificationBuffer = 256
	brandName          = "JLRP"
)

// Options replaces components that are otherwise built from the config.
// Zero fields use the configured implementation.
type Options struct {
	Repos     *repositories.Set
	Gateway   payment.Gateway
	Store     storage.ObjectStore
	Transport mailer.Transport
	// Dispatcher bypasses both the worker pool and the broker.
	Dispatcher notify.Dispatcher
}

// App owns the HTTP server and every long-lived resource behind it.
type App struct {
	Fiber *fiber.App

	Auth     *services.AuthService
	Products *services.ProductService
	Orders   *services.OrderService
	Returns  *services.ReturnService
	Sender   *notify.Sender

	cfg     *config.Config
	log     zerolog.Logger
	closers []func(ctx context.Context) error
	cancel  context.CancelFunc
}

// New builds the application. On error every resource opened so far is
// released.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &App{cfg: cfg, log: log, cancel: cancel}
	if err := a.build(ctx, opts); err != nil {
		_ = a.Shutdown(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg, log := a.cfg, a.log

	repos := opts.Repos
	if repos == nil {
		store, err := database.Open(ctx, cfg, log)
		if err != nil {
			return err
		}
		a.onClose(store.Close)
		repos = &store.Repos
	}

	transport := opts.Transport
	if transport == nil {
		transport = mailer.New(mailer.Config{
			SMTPHost:     cfg.SMTPHost,
			SMTPPort:     cfg.SMTPPort,
			SMTPUser:     cfg.SMTPUser,
			SMTPPass:     cfg.SMTPPass,
			SMTPFrom:     cfg.SMTPFrom,
			FromName:     cfg.EmailFromName,
			SendGridKey:  cfg.SendGridAPIKey,
			SendGridFrom: cfg.SendGridFromEmail,
		}, log)
	}
	renderer, err := notify.NewRenderer(brandName)
	if err != nil {
		return err
	}
	a.Sender = notify.NewSender(renderer, transport)
	log.Info().Str("transport", transport.Name()).Msg("email transport selected")

	dispatcher, err := a.dispatcher(ctx, opts)
	if err != nil {
		return err
	}

	objects := opts.Store
	if objects == nil {
		if objects, err = a.objectStore(); err != nil {
			return err
		}
	}

	gateway := opts.Gateway
	if gateway == nil {
		gateway = payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayCurrency)
	}

	tokens, err := services.NewTokenService(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		return err
	}
	a.Auth = services.NewAuthService(
		repos.Users,
		tokens,
		services.NewPasswordHasher(services.DefaultArgon2Params),
		dispatcher,
		a.limiter(ctx),
		services.AuthConfig{
			AccessTTL:        cfg.AccessTTL,
			RefreshTTL:       cfg.RefreshTTL,
			ResetTTL:         cfg.ResetTTL,
			AdminLoginOnly:   cfg.AdminLoginOnly,
			SiteAdminEmail:   cfg.SiteAdminEmail,
			ResetURL:         cfg.ResetURL(),
			ExposeResetToken: cfg.ExposeResetToken,
		},
		log.With().Str("component", "auth").Logger(),
	)
	images := services.NewImageService(repos.Images, objects, cfg.MaxImageSize, log.With().Str("component", "images").Logger())
	a.Products = services.NewProductService(repos.Products, images, log.With().Str("component", "catalog").Logger())
	a.Orders = services.NewOrderService(repos.Orders, repos.Products, repos.Payments, gateway, dispatcher,
		log.With().Str("component", "orders").Logger())
	a.Returns = services.NewReturnService(repos.Returns, repos.Orders, gateway, dispatcher,
		log.With().Str("component", "returns").Logger())
	dashboard := services.NewDashboardService(*repos)

	a.Fiber = fiber.New(fiber.Config{
		AppName:      brandName,
		BodyLimit:    int(cfg.MaxImageSize)*10 + 1<<20,
		ErrorHandler: a.errorHandler,
	})
	a.Fiber.Use(recover.New())
	a.Fiber.Use(fiberlogger.New())
	a.Fiber.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	if local, ok := objects.(*storage.LocalStore); ok {
		a.Fiber.Static(strings.TrimSuffix(storage.URLPrefix, "/"), local.Dir())
	}

	a.Fiber.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	requireAuth := middleware.AuthRequired(a.Auth, log)
	requireAdmin := middleware.AdminRequired()
	cookie := handlers.CookieConfig{MaxAge: cfg.RefreshTTL, Secure: !cfg.IsDevelopment()}

	handlers.NewAuthHandler(a.Auth, cookie, log).RegisterRoutes(a.Fiber, requireAuth, requireAdmin)
	handlers.NewProductHandler(a.Products, images, log).RegisterRoutes(a.Fiber, requireAuth, requireAdmin)
	handlers.NewOrderHandler(a.Orders, log).RegisterRoutes(a.Fiber, requireAuth, requireAdmin)
	handlers.NewReturnHandler(a.Returns, log).RegisterRoutes(a.Fiber, requireAuth, requireAdmin)
	handlers.NewAdminHandler(dashboard, images, log).RegisterRoutes(a.Fiber, requireAuth, requireAdmin)
	return nil
}

// dispatcher picks the broker when RABBITMQ_URL is set and an in-process
// worker pool otherwise.
func (a *App) dispatcher(ctx context.Context, opts Options) (notify.Dispatcher, error) {
	if opts.Dispatcher != nil {
		return opts.Dispatcher, nil
	}
	log := a.log.With().Str("component", "notify").Logger()

	if a.cfg.RabbitMQURL == "" {
		pool := notify.NewWorkerPool(a.Sender, a.cfg.NotifyWorkers, notificationBuffer, log)
		a.onClose(func(context.Context) error {
			pool.Close()
			return nil
		})
		return pool, nil
	}

	mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: a.cfg.RabbitMQURL, Queue: notificationQueue}, log)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return mq.Close() })
	if err := notify.ConsumeJobs(ctx, mq, a.Sender, log); err != nil {
		return nil, err
	}
	return notify.NewQueueDispatcher(mq, log), nil
}

// limiter uses Redis when configured and reachable, and process memory
// otherwise.
func (a *App) limiter(ctx context.Context) throttle.Limiter {
	if a.cfg.RedisAddr == "" {
		return throttle.NewMemoryLimiter()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.log.Warn().Err(err).Str("addr", a.cfg.RedisAddr).Msg("redis unavailable, throttling in memory")
		_ = client.Close()
		return throttle.NewMemoryLimiter()
	}
	a.onClose(func(context.Context) error { return client.Close() })
	return throttle.NewRedisLimiter(client)
}

func (a *App) objectStore() (storage.ObjectStore, error) {
	if a.cfg.StorageDriver == "cloudinary" {
		return storage.NewCloudinaryStore(a.cfg.CloudinaryCloudName, a.cfg.CloudinaryAPIKey,
			a.cfg.CloudinaryAPISecret, a.cfg.CloudinaryFolder)
	}
	return storage.NewLocalStore(a.cfg.UploadDir, a.cfg.PublicBaseURL())
}

func corsConfig(origins string) cors.Config {
	origins = strings.TrimSpace(origins)
	if origins == "" || origins == "*" {
		return cors.Config{AllowOrigins: "*"}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowCredentials: true,
	}
}

// errorHandler renders errors that escape handlers, such as unknown routes
// and oversized bodies, in the same JSON shape as handled errors.
func (a *App) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		a.log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}
	return c.Status(code).JSON(fiber.Map{"message": msg})
}

// Listen serves HTTP until Shutdown is called.
func (a *App) Listen() error {
	a.log.Info().Str("addr", a.cfg.Addr()).Msg("starting server")
	return a.Fiber.Listen(a.cfg.Addr())
}

// Routes lists every registered method and path.
func (a *App) Routes() []string {
	var out []string
	for _, r := range a.Fiber.GetRoutes(true) {
		out = append(out, fmt.Sprintf("%-7s %s", r.Method, r.Path))
	}
	return out
}

// Shutdown stops the server and releases resources in reverse order of
// creation.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Fiber != nil {
		if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("fiber shutdown: %w", err))
		}
	}
	a.cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
