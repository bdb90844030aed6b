package config

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultEnvFile = ".env"

// env is the merged key/value view Load reads from. Empty values count as unset so a blank
// variable falls back to the default instead of clearing it.
type env map[string]string

// collect merges the sources in precedence order: .env file < OS environment < explicit map.
func collect(o loaderOptions) (env, error) {
	values := make(env)
	fromFile, err := readDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	maps.Copy(values, fromFile)
	if o.useSystemEnv {
		for _, entry := range os.Environ() {
			if key, value, ok := strings.Cut(entry, "="); ok && strings.TrimSpace(key) != "" {
				values[strings.TrimSpace(key)] = value
			}
		}
	}
	maps.Copy(values, o.envMap)
	return values, nil
}

func (e env) str(key, fallback string) string {
	if value := strings.TrimSpace(e[key]); value != "" {
		return value
	}
	return fallback
}

func (e env) upper(key, fallback string) string { return strings.ToUpper(e.str(key, fallback)) }

func (e env) lower(key, fallback string) string { return strings.ToLower(e.str(key, fallback)) }

// Unparseable numbers and durations fall back silently; validateConfig catches the values
// that matter.
func (e env) duration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(e.str(key, "")); err == nil {
		return d
	}
	return fallback
}

func (e env) int64(key string, fallback int64) int64 {
	if n, err := strconv.ParseInt(e.str(key, ""), 10, 64); err == nil {
		return n
	}
	return fallback
}

func (e env) int(key string, fallback int) int {
	return int(e.int64(key, int64(fallback)))
}

func (e env) bool(key string, fallback bool) bool {
	switch strings.ToLower(e.str(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func (e env) list(key string, fallback ...string) []string {
	var out []string
	for _, part := range strings.Split(e.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// readDotEnv parses KEY=VALUE lines, tolerating `export` prefixes, comments and quoted values.
// A missing file is not an error.
func readDotEnv(path string) (env, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	values := make(env)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return values, nil
}
