package adapters

import (
	"sort"
	"strings"

	"github.com/smallbiznis/tenancy/internal/payment/domain"
)

type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{factories: map[string]domain.AdapterFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(factory.Provider()))
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	return registry
}

func (r *Registry) NewAdapter(provider string, cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewAdapter(cfg)
}

// Set holds the adapters constructed at startup, one per configured rail.
// Lookup by an unknown provider id is a configuration error, never a
// fallback.
type Set struct {
	adapters map[string]domain.PaymentAdapter
}

func NewSet(adapters ...domain.PaymentAdapter) *Set {
	set := &Set{adapters: map[string]domain.PaymentAdapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(adapter.Provider()))
		if provider == "" {
			continue
		}
		set.adapters[provider] = adapter
	}
	return set
}

func (s *Set) Get(provider string) (domain.PaymentAdapter, error) {
	if s == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, ok := s.adapters[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return adapter, nil
}

func (s *Set) Providers() []string {
	if s == nil {
		return nil
	}
	providers := make([]string, 0, len(s.adapters))
	for provider := range s.adapters {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}
