package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	httpserver "github.com/fairyhunter13/ai-interview-coach/internal/adapter/httpserver"
)

// Pinger is a backing service that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck turns a Pinger into a named readiness check. A nil pinger
// always fails so misconfiguration shows up on /readyz.
func PingCheck(name string, p Pinger) httpserver.ReadinessCheck {
	return httpserver.ReadinessCheck{
		Name: name,
		Check: func(ctx context.Context) error {
			if p == nil {
				return fmt.Errorf("%s not configured", name)
			}
			return p.Ping(ctx)
		},
	}
}

// WaitForDependencies retries every check with exponential backoff until all
// pass or timeout elapses. It returns the joined errors of checks that never
// passed.
func WaitForDependencies(ctx context.Context, checks []httpserver.ReadinessCheck, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	for _, c := range checks {
		expo := backoff.NewExponentialBackOff()
		expo.InitialInterval = 200 * time.Millisecond
		expo.MaxInterval = 3 * time.Second
		expo.MaxElapsedTime = 0
		attempt := 0
		err := backoff.Retry(func() error {
			attempt++
			pctx, pcancel := context.WithTimeout(ctx, 2*time.Second)
			defer pcancel()
			err := c.Check(pctx)
			if err != nil {
				slog.Debug("dependency not ready", slog.String("dependency", c.Name), slog.Int("attempt", attempt), slog.Any("error", err))
			}
			return err
		}, backoff.WithContext(expo, ctx))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		slog.Info("dependency ready", slog.String("dependency", c.Name), slog.Int("attempts", attempt))
	}
	if len(errs) > 0 {
		return fmt.Errorf("op=app.WaitForDependencies: %w", errors.Join(errs...))
	}
	return nil
}
