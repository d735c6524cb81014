package obs

import (
	"context"
	"testing"
)

func TestInitTracerWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "walletd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracerInstallsProvider(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{
		Endpoint:    "127.0.0.1:4317",
		ServiceName: "walletd",
		Version:     "test",
		Environment: "test",
		Insecure:    true,
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
