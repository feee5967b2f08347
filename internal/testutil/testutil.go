// Package testutil provides test helpers: descriptor fixtures, an
// in-process SSH server and context helpers.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"
)

// Context returns a context with a reasonable timeout for tests.
// The cancel function is registered via t.Cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// VPPSocket returns the binary API socket used by integration tests.
func VPPSocket() string {
	if s := os.Getenv("PAPI_TEST_VPP_SOCKET"); s != "" {
		return s
	}
	return "/run/vpp/api.sock"
}

// SkipIfNoVPP skips the test unless a VPP API socket is present.
func SkipIfNoVPP(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(VPPSocket()); err != nil {
		t.Skipf("VPP not available at %s: %v", VPPSocket(), err)
	}
}

// MustEnv returns the value of an environment variable or fails the test.
func MustEnv(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Fatalf("required environment variable %s not set", key)
	}
	return v
}
