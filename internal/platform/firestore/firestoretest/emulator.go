// Package firestoretest runs integration tests against a Firestore emulator.
package firestoretest

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	pconfig "github.com/glassworks/storefront/internal/platform/config"
	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
)

const (
	emulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
	emulatorPort  = "8080/tcp"
	readyTimeout  = 30 * time.Second
)

// NewProvider returns a provider on a fresh project id, so tests never see each other's data.
// FIRESTORE_EMULATOR_HOST is used when set; otherwise an emulator container runs for the
// lifetime of the test. Without either the test is skipped.
func NewProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST"))
	if host == "" {
		host = startEmulator(t)
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "test-" + strconv.FormatInt(time.Now().UnixNano(), 36),
		EmulatorHost: host,
	})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

// startEmulator runs the emulator with a docker-assigned host port and waits until it accepts
// connections.
func startEmulator(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not available: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Skipf("docker daemon unavailable: %v", err)
	}

	id := docker(t, "run", "-d", "--rm", "-p", "127.0.0.1::8080", emulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = exec.CommandContext(ctx, "docker", "stop", id).Run()
	})

	// "docker port" may list an IPv6 binding too; the first line is enough.
	host, _, _ := strings.Cut(docker(t, "port", id, emulatorPort), "\n")
	host = strings.TrimSpace(host)

	deadline := time.Now().Add(readyTimeout)
	for {
		conn, err := net.DialTimeout("tcp", host, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return host
		}
		if time.Now().After(deadline) {
			t.Fatalf("firestore emulator at %s not ready: %v", host, err)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func docker(t *testing.T, args ...string) string {
	t.Helper()
	out, err := exec.Command("docker", args...).Output()
	if err != nil {
		t.Fatalf("docker %s: %v", args[0], err)
	}
	value := strings.TrimSpace(string(out))
	if value == "" {
		t.Fatalf("docker %s returned no output", args[0])
	}
	return value
}
