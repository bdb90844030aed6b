package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultStoreBackend         = "firestore"
	defaultCartBackend          = "firestore"
	defaultCurrency             = "TRY"
	defaultLocale               = "tr-TR"
	defaultTimeZone             = "Europe/Istanbul"
	defaultOrderNumberPrefix    = "CAM"
	defaultOrderNumberStrategy  = "timestamp"
	defaultReservationTTL       = 24 * time.Hour
	defaultReservationSweep     = time.Hour
	defaultFlatShippingCost     = 4900
	defaultFreeShippingMinimum  = 150000
	defaultCartTTL              = 30 * 24 * time.Hour
	defaultCartSessionHeader    = "X-Cart-Session"
	defaultRedisAddr            = "localhost:6379"
	defaultNotificationsTopic   = "order-notifications"
	defaultOrderEventsTopic     = "order-events"
	defaultSecurityEnvironment  = "local"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	PubSub      PubSubConfig
	Store       StoreConfig
	Shipping    ShippingConfig
	Orders      OrderConfig
	Cart        CartConfig
	Redis       RedisConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for admin authentication.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig lists bucket names used by the application. SignerKey (inline service account
// JSON, usually a secret:// ref) or SignerKeyFile enables signed download links in the back office.
type StorageConfig struct {
	UploadsBucket string
	OrdersBucket  string
	SignerKey     string
	SignerKeyFile string
}

// PubSubConfig names the topics used for order notifications and events.
type PubSubConfig struct {
	ProjectID          string
	NotificationsTopic string
	OrderEventsTopic   string
	EmulatorHost       string
}

// StoreConfig describes the storefront locale and persistence backend.
type StoreConfig struct {
	Backend  string
	Currency string
	Locale   string
	TimeZone string
}

// ShippingConfig provides shipping defaults used until settings are stored.
type ShippingConfig struct {
	FlatCost              int64
	FreeShippingThreshold int64
}

// OrderConfig controls order numbering and lifecycle options.
type OrderConfig struct {
	NumberPrefix   string
	NumberStrategy string
	AllowReopen    bool
	// ReservationTTL is how long a reserved order number waits for checkout before it is purged.
	ReservationTTL           time.Duration
	ReservationSweepInterval time.Duration
}

// CartConfig controls cart session storage.
type CartConfig struct {
	Backend       string
	TTL           time.Duration
	SessionHeader string
}

// RedisConfig configures the Redis cart backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig groups authentication settings.
type SecurityConfig struct {
	Environment string
	AdminRoles  []string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// ValidationError lists the config fields that are missing or out of range.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns the offending field paths, e.g. "Cart.TTL".
func (e *ValidationError) Fields() []string {
	return slices.Clone(e.fields)
}

// Option customises Load and EnvironmentValues.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

func newLoaderOptions(opts []Option) loaderOptions {
	o := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithEnvFile sets the dotenv file; an empty path skips it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap adds explicit values that win over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver resolves secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets names secret fields ("Redis.Password", "Storage.SignerKey", ...) that
// must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged environment Load would read. main uses it to build the
// secret fetcher before the config exists.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	values, err := collect(newLoaderOptions(opts))
	return values, err
}

// Load builds the runtime configuration from defaults, the dotenv file, the environment and
// resolved secrets, then validates it.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	o := newLoaderOptions(opts)
	e, err := collect(o)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         e.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  e.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: e.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  e.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       e.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: e.str("API_FIREBASE_CREDENTIALS_FILE", ""),
			CredentialsJSON: e.str("API_FIREBASE_CREDENTIALS_JSON", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    e.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: e.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			UploadsBucket: e.str("API_STORAGE_UPLOADS_BUCKET", ""),
			OrdersBucket:  e.str("API_STORAGE_ORDERS_BUCKET", ""),
			SignerKey:     e.str("API_STORAGE_SIGNER_KEY", ""),
			SignerKeyFile: e.str("API_STORAGE_SIGNER_KEY_FILE", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:          e.str("API_PUBSUB_PROJECT_ID", ""),
			NotificationsTopic: e.str("API_PUBSUB_NOTIFICATIONS_TOPIC", defaultNotificationsTopic),
			OrderEventsTopic:   e.str("API_PUBSUB_ORDER_EVENTS_TOPIC", defaultOrderEventsTopic),
			EmulatorHost:       e.str("API_PUBSUB_EMULATOR_HOST", ""),
		},
		Store: StoreConfig{
			Backend:  e.lower("API_STORE_BACKEND", defaultStoreBackend),
			Currency: e.upper("API_STORE_CURRENCY", defaultCurrency),
			Locale:   e.str("API_STORE_LOCALE", defaultLocale),
			TimeZone: e.str("API_STORE_TIMEZONE", defaultTimeZone),
		},
		Shipping: ShippingConfig{
			FlatCost:              e.int64("API_SHIPPING_FLAT_COST", defaultFlatShippingCost),
			FreeShippingThreshold: e.int64("API_SHIPPING_FREE_THRESHOLD", defaultFreeShippingMinimum),
		},
		Orders: OrderConfig{
			NumberPrefix:   e.upper("API_ORDERS_NUMBER_PREFIX", defaultOrderNumberPrefix),
			NumberStrategy: e.lower("API_ORDERS_NUMBER_STRATEGY", defaultOrderNumberStrategy),
			AllowReopen:    e.bool("API_ORDERS_ALLOW_REOPEN", false),

			ReservationTTL:           e.duration("API_ORDERS_RESERVATION_TTL", defaultReservationTTL),
			ReservationSweepInterval: e.duration("API_ORDERS_RESERVATION_SWEEP_INTERVAL", defaultReservationSweep),
		},
		Cart: CartConfig{
			Backend:       e.lower("API_CART_BACKEND", defaultCartBackend),
			TTL:           e.duration("API_CART_TTL", defaultCartTTL),
			SessionHeader: e.str("API_CART_SESSION_HEADER", defaultCartSessionHeader),
		},
		Redis: RedisConfig{
			Addr:     e.str("API_REDIS_ADDR", defaultRedisAddr),
			Password: e.str("API_REDIS_PASSWORD", ""),
			DB:       e.int("API_REDIS_DB", 0),
		},
		Security: SecurityConfig{
			Environment: e.lower("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment),
			AdminRoles:  e.list("API_SECURITY_ADMIN_ROLES", "staff", "admin"),
		},
		Idempotency: IdempotencyConfig{
			Header:           e.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              e.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  e.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: e.int("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	// One GCP project usually serves Firebase Auth, Firestore and Pub/Sub.
	cfg.Firestore.ProjectID = firstNonEmpty(cfg.Firestore.ProjectID, cfg.Firebase.ProjectID)
	cfg.PubSub.ProjectID = firstNonEmpty(cfg.PubSub.ProjectID, cfg.Firestore.ProjectID)

	if err := resolveSecrets(ctx, &cfg, o.secret, nil); err != nil {
		return Config{}, err
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if err := resolveSecrets(ctx, &cfg, nil, o.requiredSecrets); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Store.Backend {
	case "firestore":
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case "memory":
	default:
		missing = append(missing, "Store.Backend")
	}
	switch cfg.Cart.Backend {
	case "firestore", "redis", "memory":
	default:
		missing = append(missing, "Cart.Backend")
	}
	if cfg.Cart.Backend == "redis" && strings.TrimSpace(cfg.Redis.Addr) == "" {
		missing = append(missing, "Redis.Addr")
	}
	if cfg.Cart.TTL <= 0 {
		missing = append(missing, "Cart.TTL")
	}
	if strings.TrimSpace(cfg.Cart.SessionHeader) == "" {
		missing = append(missing, "Cart.SessionHeader")
	}
	if len(cfg.Store.Currency) != 3 {
		missing = append(missing, "Store.Currency")
	}
	if cfg.Shipping.FlatCost < 0 {
		missing = append(missing, "Shipping.FlatCost")
	}
	if cfg.Shipping.FreeShippingThreshold < 0 {
		missing = append(missing, "Shipping.FreeShippingThreshold")
	}
	if cfg.Orders.NumberPrefix == "" {
		missing = append(missing, "Orders.NumberPrefix")
	}
	switch cfg.Orders.NumberStrategy {
	case "timestamp", "sequence":
	default:
		missing = append(missing, "Orders.NumberStrategy")
	}
	if cfg.Orders.ReservationTTL <= 0 {
		missing = append(missing, "Orders.ReservationTTL")
	}
	if cfg.Orders.ReservationSweepInterval <= 0 {
		missing = append(missing, "Orders.ReservationSweepInterval")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
