package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/glassworks/storefront/internal/di"
	"github.com/glassworks/storefront/internal/handlers"
	"github.com/glassworks/storefront/internal/platform/auth"
	"github.com/glassworks/storefront/internal/platform/config"
	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/platform/idempotency"
	"github.com/glassworks/storefront/internal/platform/jobs"
	"github.com/glassworks/storefront/internal/platform/observability"
	"github.com/glassworks/storefront/internal/platform/secrets"
	platformstorage "github.com/glassworks/storefront/internal/platform/storage"
	"github.com/glassworks/storefront/internal/repositories"
	firestoreRepo "github.com/glassworks/storefront/internal/repositories/firestore"
	"github.com/glassworks/storefront/internal/repositories/memory"
	redisRepo "github.com/glassworks/storefront/internal/repositories/redis"
	"github.com/glassworks/storefront/internal/services"
)

const (
	couponAttemptsPerWindow = 10
	orderLookupsPerWindow   = 30
	rateLimitWindow         = time.Minute
	reservationSweepBatch   = 200
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	var redisClient *goredis.Client
	if cfg.Cart.Backend == "redis" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}
	extraChecks := redisChecks(redisClient)

	var firestoreProvider *pfirestore.Provider
	if cfg.Store.Backend == "firestore" || cfg.Cart.Backend == "firestore" {
		firestoreProvider = pfirestore.NewProvider(cfg.Firestore)
		if _, err := firestoreProvider.Client(ctx); err != nil {
			logger.Fatal("failed to initialise firestore client", zap.Error(err))
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := firestoreProvider.Close(closeCtx); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}()
	}

	var registry repositories.Registry
	var memoryStore *memory.Store
	switch cfg.Store.Backend {
	case "firestore":
		registry, err = firestoreRepo.NewRegistry(firestoreProvider, extraChecks...)
		if err != nil {
			logger.Fatal("failed to initialise firestore repositories", zap.Error(err))
		}
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		memoryStore = memory.New(memory.WithDependencyChecks(extraChecks...))
		registry = memoryStore
	}

	carts, err := newCartRepository(cfg, firestoreProvider, redisClient, memoryStore)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}

	infra := di.Infrastructure{
		Registry: registry,
		Carts:    carts,
		Logger:   services.Logger(observability.NewEventLogger(logger.Named("services"))),
		Build:    buildInfo,
	}

	var topics []*pubsub.Topic
	pubsubClient, err := newPubSubClient(ctx, cfg.PubSub)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	if pubsubClient != nil {
		defer func() {
			for _, topic := range topics {
				topic.Stop()
			}
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		if name := strings.TrimSpace(cfg.PubSub.NotificationsTopic); name != "" {
			topic := pubsubClient.Topic(name)
			topics = append(topics, topic)
			notifier, err := jobs.NewPubSubOrderNotifier(topic)
			if err != nil {
				logger.Fatal("failed to initialise order notifier", zap.Error(err))
			}
			infra.Notifier = notifier
		}
		if name := strings.TrimSpace(cfg.PubSub.OrderEventsTopic); name != "" {
			topic := pubsubClient.Topic(name)
			topic.EnableMessageOrdering = true
			topics = append(topics, topic)
			publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
			if err != nil {
				logger.Fatal("failed to initialise order event publisher", zap.Error(err))
			}
			infra.Events = publisher
		}
	} else {
		logger.Warn("pubsub project not configured; order notifications disabled")
	}

	var storageClient *cloudstorage.Client
	if cfg.Storage.UploadsBucket != "" && cfg.Storage.OrdersBucket != "" {
		storageClient, err = cloudstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}()
		copier, err := platformstorage.NewCopier(storageClient)
		if err != nil {
			logger.Fatal("failed to initialise storage copier", zap.Error(err))
		}
		archiver, err := platformstorage.NewArchiver(copier, cfg.Storage.UploadsBucket, cfg.Storage.OrdersBucket)
		if err != nil {
			logger.Fatal("failed to initialise personalization archiver", zap.Error(err))
		}
		infra.Archiver = archiver
	}

	imageSigner, err := newImageURLSigner(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialise storage signer", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, infra)
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()
	svc := container.Services

	idempotencyStore, err := newIdempotencyStore(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	sweeper := jobs.NewPeriodic("idempotency-cleanup", cfg.Idempotency.CleanupInterval, time.Minute,
		func(ctx context.Context) (int, error) {
			return idempotencyStore.CleanupExpired(ctx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
		}, logger.Named("idempotency"))
	sweeper.Start(ctx)

	reservationSweeper := jobs.NewPeriodic("order-number-reservations", cfg.Orders.ReservationSweepInterval, time.Minute,
		func(ctx context.Context) (int, error) {
			return svc.Allocator.PurgeExpiredReservations(ctx, cfg.Orders.ReservationTTL, reservationSweepBatch)
		}, logger.Named("orders"))
	reservationSweeper.Start(ctx)

	projectID := traceProjectID(cfg)
	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(buildInfo),
			handlers.WithHealthSystemService(svc.System),
		)),
		handlers.WithCartSessionHeader(cfg.Cart.SessionHeader),
		handlers.WithCartRoutes(handlers.NewCartHandlers(svc.Cart, cfg.Cart.SessionHeader).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(svc.Checkout, idempotencyMiddleware).
			WithCouponRateLimit(couponAttemptsPerWindow, rateLimitWindow).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(svc.Orders).
			WithLookupRateLimit(orderLookupsPerWindow, rateLimitWindow).Routes),
	}

	if strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
		}
		authenticator := auth.NewAuthenticator(verifier)
		orderAdmin := handlers.NewAdminOrderHandlers(svc.Orders)
		if imageSigner != nil {
			orderAdmin = orderAdmin.WithImageURLSigner(imageSigner)
		}
		opts = append(opts,
			handlers.WithAdminMiddlewares(authenticator.RequireRoles(cfg.Security.AdminRoles...)),
			handlers.WithAdminRoutes(
				orderAdmin.Routes,
				handlers.NewAdminCatalogHandlers(svc.Coupons, svc.Settings).Routes,
			),
		)
	} else {
		logger.Warn("firebase project not configured; admin routes disabled")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening",
			zap.String("store", cfg.Store.Backend),
			zap.String("cart", cfg.Cart.Backend),
			zap.String("version", buildInfo.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	sweeper.Stop()
	reservationSweeper.Stop()
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secret fields that must resolve to a value. A field only
// becomes required once the environment configures it.
func requiredSecretNames(env map[string]string) []string {
	configured := func(key string) bool {
		return strings.TrimSpace(env[key]) != ""
	}
	var required []string
	if strings.EqualFold(strings.TrimSpace(env["API_CART_BACKEND"]), "redis") && configured("API_REDIS_PASSWORD") {
		required = append(required, "Redis.Password")
	}
	if configured("API_FIREBASE_CREDENTIALS_JSON") {
		required = append(required, "Firebase.CredentialsJSON")
	}
	if configured("API_STORAGE_SIGNER_KEY") {
		required = append(required, "Storage.SignerKey")
	}
	sort.Strings(required)
	return required
}

func redisChecks(client *goredis.Client) []repositories.DependencyCheck {
	if client == nil {
		return nil
	}
	return []repositories.DependencyCheck{{
		Name:    "redis",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}}
}

func newCartRepository(cfg config.Config, provider *pfirestore.Provider, client *goredis.Client, store *memory.Store) (repositories.CartRepository, error) {
	switch cfg.Cart.Backend {
	case "firestore":
		return firestoreRepo.NewCartRepository(provider)
	case "redis":
		return redisRepo.NewCartRepository(client, cfg.Cart.TTL)
	default:
		if store == nil {
			store = memory.New()
		}
		return store.Carts(), nil
	}
}

// newPubSubClient returns nil when no project is configured. The emulator host is exported so
// the client library dials it without credentials.
func newPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Client, error) {
	project := strings.TrimSpace(cfg.ProjectID)
	if project == "" {
		return nil, nil
	}
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" && os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		_ = os.Setenv("PUBSUB_EMULATOR_HOST", host)
	}
	return pubsub.NewClient(ctx, project)
}

func newImageURLSigner(cfg config.StorageConfig) (handlers.ImageURLSigner, error) {
	signer, err := platformstorage.NewServiceAccountSigner(cfg.SignerKey, cfg.SignerKeyFile)
	if err != nil || signer == nil {
		return nil, err
	}
	client, err := platformstorage.NewClient(signer, platformstorage.WithExpiry(15*time.Minute))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, ref string) (string, error) {
		signed, err := client.DownloadURL(ctx, ref)
		if err != nil {
			return "", err
		}
		return signed.URL, nil
	}, nil
}

func newIdempotencyStore(provider *pfirestore.Provider) (idempotency.Store, error) {
	if provider == nil {
		return idempotency.NewMemoryStore(), nil
	}
	return idempotency.NewFirestoreStore(provider, "")
}
