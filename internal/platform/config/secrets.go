package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// SecretResolver resolves secret:// references, normally through Secret Manager.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// SecretError reports a reference the resolver could not serve.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("resolve secret %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError lists required secret fields that resolved to nothing. Names are kept
// for callers; logs should use RedactedNames.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the config field names, e.g. "Redis.Password".
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	return slices.Clone(e.names)
}

// RedactedNames returns a short hash per missing field, sorted.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.names))
	for i, name := range e.names {
		out[i] = redactSecretName(name)
	}
	slices.Sort(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// secretField is a config field whose value may be a secret reference.
type secretField struct {
	name  string
	value *string
}

func (c *Config) secretFields() []secretField {
	return []secretField{
		{"Redis.Password", &c.Redis.Password},
		{"Firebase.CredentialsJSON", &c.Firebase.CredentialsJSON},
		{"Storage.SignerKey", &c.Storage.SignerKey},
	}
}

// resolveSecrets replaces every secret reference in cfg and then checks the required fields.
func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver, required []string) error {
	resolved := make(map[string]bool)
	for _, field := range cfg.secretFields() {
		value, err := resolveSecret(ctx, *field.value, resolver)
		if err != nil {
			return err
		}
		*field.value = value
		resolved[field.name] = strings.TrimSpace(value) != ""
	}

	var missing []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name != "" && !resolved[name] && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return &MissingSecretsError{names: missing}
	}
	return nil
}

// resolveSecret passes plain values through. sm:// is accepted as an alias of secret://.
func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	ref, ok := strings.CutPrefix(trimmed, "sm://")
	switch {
	case ok:
		ref = "secret://" + ref
	case strings.HasPrefix(trimmed, "secret://"):
		ref = trimmed
	default:
		return value, nil
	}
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}
