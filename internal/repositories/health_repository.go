package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// DependencyCheck is one readiness probe, e.g. a Firestore read or a Redis PING.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

type DependencyHealthOption func(*prober)

// WithDependencyTimeout sets the timeout for checks that do not carry their own.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(p *prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(p *prober) {
		if clock != nil {
			p.now = clock
		}
	}
}

// prober runs every check in parallel on each Collect. A failing check degrades the report;
// a check that times out or is cancelled fails it.
type prober struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
}

func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	for i, check := range checks {
		switch {
		case strings.TrimSpace(check.Name) == "":
			return nil, fmt.Errorf("health: check %d has no name", i)
		case check.Check == nil:
			return nil, fmt.Errorf("health: check %q has no probe function", check.Name)
		}
	}
	p := &prober{
		checks:  append([]DependencyCheck(nil), checks...),
		timeout: defaultDependencyTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

type probeResult struct {
	name   string
	result domain.SystemHealthCheck
}

func (p *prober) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	out := make(chan probeResult, len(p.checks))
	for _, check := range p.checks {
		go func() { out <- probeResult{name: check.Name, result: p.run(ctx, check)} }()
	}

	report := domain.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: make(map[string]domain.SystemHealthCheck, len(p.checks)),
	}
	for range p.checks {
		r := <-out
		report.Checks[r.name] = r.result
		switch {
		case r.result.Status == domain.HealthStatusError:
			report.Status = domain.HealthStatusError
		case r.result.Status == domain.HealthStatusDegraded && report.Status == domain.HealthStatusOK:
			report.Status = domain.HealthStatusDegraded
		}
	}
	report.GeneratedAt = p.now()
	return report, nil
}

func (p *prober) run(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := p.now()
	err := check.Check(ctx)
	if err == nil {
		err = ctx.Err()
	}
	finished := p.now()

	status, detail := classifyProbe(err)
	return domain.SystemHealthCheck{
		Status:    status,
		Detail:    detail,
		Latency:   finished.Sub(started),
		CheckedAt: finished,
	}
}

func classifyProbe(err error) (status, detail string) {
	switch {
	case err == nil:
		return domain.HealthStatusOK, "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return domain.HealthStatusError, "timeout"
	case errors.Is(err, context.Canceled):
		return domain.HealthStatusError, "cancelled"
	default:
		return domain.HealthStatusDegraded, err.Error()
	}
}
