//go:build integration

package redis

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/bissquit/mediahook/internal/testutil"
)

func TestMain(m *testing.M) {
	if os.Getenv(testAddrEnv) != "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	container, err := testutil.NewRedisContainer(ctx)
	if err != nil {
		log.Fatalf("start redis: %v", err)
	}

	if err := os.Setenv(testAddrEnv, container.Addr); err != nil {
		log.Fatalf("set %s: %v", testAddrEnv, err)
	}

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		log.Printf("terminate redis: %v", err)
	}
	os.Exit(code)
}
