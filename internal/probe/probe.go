// Package probe finds a reachable entry point for a client session.
//
// Each candidate is a base URL of a deployment (one per node role). A
// candidate is reachable when GET <base>/api/health answers 200 with
// {"status":"OK"} within the probe timeout. Candidates are probed one at a
// time in the given order and the first reachable one wins.
//
// The probe runs on the client side only and plays no part in replication.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HealthPath is the liveness endpoint exposed by every deployment.
const HealthPath = "/api/health"

// DefaultTimeout bounds one candidate probe.
const DefaultTimeout = 2 * time.Second

// ErrNoneReachable is returned when no candidate answered.
var ErrNoneReachable = errors.New("no reachable node")

// Prober checks candidate entry points.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// New creates a prober. A nil client means http.DefaultClient; a
// non-positive timeout means DefaultTimeout.
func New(client *http.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{client: client, timeout: timeout}
}

// Check probes a single candidate.
func (p *Prober) Check(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := strings.TrimRight(base, "/") + HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", base, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %d", base, resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return fmt.Errorf("probe %s: decode body: %w", base, err)
	}
	if body.Status != "OK" {
		return fmt.Errorf("probe %s: status %q", base, body.Status)
	}
	return nil
}

// FindReachable returns the first candidate that passes Check.
// Returns ErrNoneReachable, joined with each candidate's error, when none do.
func (p *Prober) FindReachable(ctx context.Context, candidates []string) (string, error) {
	errs := []error{ErrNoneReachable}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := p.Check(ctx, c)
		if err == nil {
			slog.Debug("entry point reachable", "candidate", c)
			return c, nil
		}
		slog.Debug("entry point unreachable", "candidate", c, "error", err)
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// NewBackOff returns the retry policy used by WaitForReachable when none is
// given: exponential from 200ms up to 10s between rounds, no overall limit.
func NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0 // until ctx ends
	b.Reset()
	return b
}

// WaitForReachable repeats FindReachable with backoff until a candidate
// answers, the policy gives up, or ctx ends. A nil policy means NewBackOff().
func (p *Prober) WaitForReachable(ctx context.Context, candidates []string, policy backoff.BackOff) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrNoneReachable)
	}
	if policy == nil {
		policy = NewBackOff()
	}

	var found string
	op := func() error {
		c, err := p.FindReachable(ctx, candidates)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		found = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Info("no entry point reachable yet, retrying", "wait", wait)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return "", err
	}
	return found, nil
}
