package server

import "context"

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// Pinger is anything that can check its remote connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendHealthService verifies backend connectivity as part of health checks.
type BackendHealthService struct {
	Backend Pinger
}

// Probe implements the HealthService interface.
func (s BackendHealthService) Probe(ctx context.Context) error {
	if s.Backend == nil {
		return nil
	}
	return s.Backend.Ping(ctx)
}
