package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "glass-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "glass-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "glass-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Store.Currency != "TRY" || cfg.Store.Locale != "tr-TR" || cfg.Store.TimeZone != "Europe/Istanbul" {
		t.Errorf("unexpected store defaults %+v", cfg.Store)
	}
	if cfg.Shipping.FlatCost != defaultFlatShippingCost || cfg.Shipping.FreeShippingThreshold != defaultFreeShippingMinimum {
		t.Errorf("unexpected shipping defaults %+v", cfg.Shipping)
	}
	if cfg.Orders.NumberPrefix != "CAM" || cfg.Orders.NumberStrategy != "timestamp" || cfg.Orders.AllowReopen {
		t.Errorf("unexpected order defaults %+v", cfg.Orders)
	}
	if cfg.Orders.ReservationTTL != 24*time.Hour || cfg.Orders.ReservationSweepInterval != time.Hour {
		t.Errorf("unexpected reservation defaults %+v", cfg.Orders)
	}
	if cfg.Cart.Backend != "firestore" || cfg.Cart.SessionHeader != "X-Cart-Session" {
		t.Errorf("unexpected cart defaults %+v", cfg.Cart)
	}
	if len(cfg.Security.AdminRoles) != 2 {
		t.Errorf("expected default admin roles, got %v", cfg.Security.AdminRoles)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_SERVER_IDLE_TIMEOUT":        "2m",
		"API_FIREBASE_PROJECT_ID":        "glass-prod",
		"API_FIRESTORE_PROJECT_ID":       "glass-fire",
		"API_STORE_CURRENCY":             "eur",
		"API_STORE_LOCALE":               "en-GB",
		"API_SHIPPING_FLAT_COST":         "990",
		"API_SHIPPING_FREE_THRESHOLD":    "25000",
		"API_ORDERS_NUMBER_PREFIX":       "gw",
		"API_ORDERS_NUMBER_STRATEGY":     "sequence",
		"API_ORDERS_ALLOW_REOPEN":        "true",
		"API_CART_BACKEND":               "redis",
		"API_CART_TTL":                   "72h",
		"API_REDIS_ADDR":                 "redis:6379",
		"API_REDIS_PASSWORD":             "secret://redis/password",
		"API_REDIS_DB":                   "2",
		"API_PUBSUB_NOTIFICATIONS_TOPIC": "mail",
		"API_SECURITY_ADMIN_ROLES":       "admin",
		"API_IDEMPOTENCY_HEADER":         "X-Idem-Key",
		"API_IDEMPOTENCY_CLEANUP_BATCH":  "500",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://redis/password" {
			return "hunter2", nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "glass-fire" {
		t.Errorf("unexpected firestore project %s", cfg.Firestore.ProjectID)
	}
	if cfg.Store.Currency != "EUR" {
		t.Errorf("expected upper-cased currency, got %s", cfg.Store.Currency)
	}
	if cfg.Shipping.FlatCost != 990 || cfg.Shipping.FreeShippingThreshold != 25000 {
		t.Errorf("unexpected shipping config %+v", cfg.Shipping)
	}
	if cfg.Orders.NumberPrefix != "GW" || cfg.Orders.NumberStrategy != "sequence" || !cfg.Orders.AllowReopen {
		t.Errorf("unexpected order config %+v", cfg.Orders)
	}
	if cfg.Cart.Backend != "redis" || cfg.Cart.TTL != 72*time.Hour {
		t.Errorf("unexpected cart config %+v", cfg.Cart)
	}
	if cfg.Redis.Password != "hunter2" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.PubSub.NotificationsTopic != "mail" || cfg.PubSub.OrderEventsTopic != defaultOrderEventsTopic {
		t.Errorf("unexpected pubsub config %+v", cfg.PubSub)
	}
	if len(cfg.Security.AdminRoles) != 1 || cfg.Security.AdminRoles[0] != "admin" {
		t.Errorf("unexpected admin roles %v", cfg.Security.AdminRoles)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.CleanupBatchSize != 500 {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nexport API_FIREBASE_PROJECT_ID=\"glass-dot\"\n# comment\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "glass-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if fields := validation.Fields(); len(fields) != 1 || fields[0] != "Firestore.ProjectID" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadMemoryBackendNeedsNoProject(t *testing.T) {
	env := map[string]string{
		"API_STORE_BACKEND": "memory",
		"API_CART_BACKEND":  "memory",
	}
	if _, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile("")); err != nil {
		t.Fatalf("expected memory backend to load without project, got %v", err)
	}
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	env := map[string]string{
		"API_STORE_BACKEND":          "memory",
		"API_CART_BACKEND":           "memory",
		"API_ORDERS_NUMBER_STRATEGY": "random",
		"API_SHIPPING_FLAT_COST":     "-1",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validation.Fields()
	if len(fields) != 2 || fields[0] != "Shipping.FlatCost" || fields[1] != "Orders.NumberStrategy" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "glass-dev",
		"API_REDIS_PASSWORD":      "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "glass-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Redis.Password"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	expectedRedacted := redactSecretName("Redis.Password")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":       "glass-dev",
		"API_FIREBASE_CREDENTIALS_JSON": "sm://firebase/credentials",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://firebase/credentials" {
			return `{"type":"service_account"}`, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.CredentialsJSON != `{"type":"service_account"}` {
		t.Fatalf("expected resolved credentials, got %s", cfg.Firebase.CredentialsJSON)
	}
}
