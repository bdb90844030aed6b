package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories"
)

// BuildInfo is the version metadata reported on /healthz.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemService reports readiness of the storefront dependencies.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	Build() BuildInfo
}

type SystemServiceDeps struct {
	Health repositories.HealthRepository
	Clock  func() time.Time
	Build  BuildInfo
}

type readinessService struct {
	probes repositories.HealthRepository
	now    func() time.Time
	build  BuildInfo
}

// NewSystemService assembles the service backing /readyz. StartedAt defaults to the moment of
// construction.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	svc := &readinessService{
		probes: deps.Health,
		now:    func() time.Time { return clock().UTC() },
		build:  deps.Build,
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = svc.now()
	}
	return svc, nil
}

func (s *readinessService) Build() BuildInfo { return s.build }

func (s *readinessService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := s.probes.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}
	report.GeneratedAt = report.GeneratedAt.UTC()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = s.now()
	}
	if report.Checks == nil {
		report.Checks = make(map[string]domain.SystemHealthCheck)
	}
	if report.Status == "" {
		report.Status = worstStatus(report.Checks)
	}
	return report, nil
}

// statusRank orders probe outcomes; unknown non-empty statuses count as degraded.
var statusRank = map[string]int{
	"":                         0,
	domain.HealthStatusOK:       0,
	domain.HealthStatusDegraded: 1,
	domain.HealthStatusError:    2,
}

func worstStatus(checks map[string]domain.SystemHealthCheck) string {
	worst := 0
	for _, check := range checks {
		rank, known := statusRank[check.Status]
		if !known {
			rank = 1
		}
		worst = max(worst, rank)
	}
	switch worst {
	case 2:
		return domain.HealthStatusError
	case 1:
		return domain.HealthStatusDegraded
	}
	return domain.HealthStatusOK
}
