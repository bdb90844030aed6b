package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glassworks/storefront/internal/repositories"
)

// ErrSettingsInvalidInput signals rejected settings values.
var ErrSettingsInvalidInput = errors.New("settings: invalid input")

// SettingsServiceDeps bundles collaborators required to construct the settings service.
type SettingsServiceDeps struct {
	Settings repositories.SettingsRepository
	// Defaults apply until a policy has been stored.
	Defaults ShippingPolicy
	Clock    func() time.Time
	Logger   Logger
}

type settingsService struct {
	settings repositories.SettingsRepository
	defaults ShippingPolicy
	clock    func() time.Time
	logger   Logger
}

// NewSettingsService constructs the settings service.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}
	if deps.Defaults.FlatShippingCost < 0 || deps.Defaults.FreeShippingThreshold < 0 {
		return nil, errors.New("settings service: default shipping values must not be negative")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &settingsService{
		settings: deps.Settings,
		defaults: deps.Defaults,
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

func (s *settingsService) ShippingPolicy(ctx context.Context) (ShippingPolicy, error) {
	policy, err := s.settings.ShippingPolicy(ctx)
	switch {
	case err == nil:
		return policy, nil
	case repositories.IsNotFound(err):
		return s.defaults, nil
	default:
		return ShippingPolicy{}, storeError(err)
	}
}

func (s *settingsService) UpdateShippingPolicy(ctx context.Context, cmd UpdateShippingPolicyCommand) (ShippingPolicy, error) {
	if cmd.FlatShippingCost < 0 {
		return ShippingPolicy{}, fmt.Errorf("%w: flat shipping cost must not be negative", ErrSettingsInvalidInput)
	}
	if cmd.FreeShippingThreshold < 0 {
		return ShippingPolicy{}, fmt.Errorf("%w: free shipping threshold must not be negative", ErrSettingsInvalidInput)
	}
	policy := ShippingPolicy{
		FlatShippingCost:      cmd.FlatShippingCost,
		FreeShippingThreshold: cmd.FreeShippingThreshold,
		UpdatedAt:             s.clock(),
		UpdatedBy:             cmd.ActorID,
	}
	if err := s.settings.SaveShippingPolicy(ctx, policy); err != nil {
		return ShippingPolicy{}, storeError(err)
	}
	s.logger(ctx, "settings.shipping.updated", map[string]any{
		"flatShippingCost":      policy.FlatShippingCost,
		"freeShippingThreshold": policy.FreeShippingThreshold,
		"actor":                 policy.UpdatedBy,
	})
	return policy, nil
}
