package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Ensure DiscoveryCoordinator implements the interface.
var _ driving.DiscoveryCoordinator = (*DiscoveryCoordinator)(nil)

// resourceBinder is the part of the auth coordinator the Office 365
// coordinators need: a request signer for one resource audience.
type resourceBinder interface {
	SignerFor(resourceID string) (driven.TokenSource, error)
}

// DiscoveryCoordinator resolves capabilities to service endpoints.
//
// The full service list is fetched once and trusted afterwards: a capability
// missing from a populated cache is reported as not found without asking the
// discovery service again.
type DiscoveryCoordinator struct {
	auth     resourceBinder
	client   driven.DiscoveryClient
	resource string

	// fetchMu serialises lookups so concurrent first callers share one fetch.
	fetchMu sync.Mutex

	mu         sync.Mutex
	services   []domain.ServiceDescriptor
	populated  bool
	generation uint64
}

// NewDiscoveryCoordinator creates a coordinator that authenticates discovery
// calls against discoveryResource.
func NewDiscoveryCoordinator(
	auth resourceBinder,
	client driven.DiscoveryClient,
	discoveryResource string,
) *DiscoveryCoordinator {
	return &DiscoveryCoordinator{
		auth:     auth,
		client:   client,
		resource: discoveryResource,
	}
}

// GetServiceInfo resolves capability on a background goroutine.
func (d *DiscoveryCoordinator) GetServiceInfo(
	ctx context.Context, capability domain.Capability,
) *async.Future[domain.ServiceDescriptor] {
	return async.Go(func() (domain.ServiceDescriptor, error) {
		return d.getServiceInfo(ctx, capability)
	})
}

func (d *DiscoveryCoordinator) getServiceInfo(
	ctx context.Context, capability domain.Capability,
) (domain.ServiceDescriptor, error) {
	d.fetchMu.Lock()
	defer d.fetchMu.Unlock()

	d.mu.Lock()
	if d.populated {
		svc, ok := findCapability(d.services, capability)
		d.mu.Unlock()
		if ok {
			logger.Debug("discovery: %s service found in cached services", capability)
			return svc, nil
		}
		return domain.ServiceDescriptor{}, fmt.Errorf(
			"%w: the %s capability was not found in the cached services", domain.ErrNotFound, capability)
	}
	gen := d.generation
	d.mu.Unlock()

	services, err := d.fetch(ctx)
	if err != nil {
		return domain.ServiceDescriptor{}, err
	}

	d.mu.Lock()
	// A Reset during the fetch wins; the result is still returned to this caller.
	if gen == d.generation {
		d.services = services
		d.populated = true
	}
	d.mu.Unlock()
	logger.Debug("discovery: fetched %d services", len(services))

	if svc, ok := findCapability(services, capability); ok {
		return svc, nil
	}
	return domain.ServiceDescriptor{}, fmt.Errorf(
		"%w: the %s capability was not found in the user services", domain.ErrNotFound, capability)
}

func (d *DiscoveryCoordinator) fetch(ctx context.Context) ([]domain.ServiceDescriptor, error) {
	if d.client == nil {
		return nil, fmt.Errorf("%w: discovery client is required", domain.ErrConfiguration)
	}

	// Discovery and mail are different audiences.
	signer, err := d.auth.SignerFor(d.resource)
	if err != nil {
		return nil, err
	}

	return d.client.Services(ctx, signer)
}

// findCapability is a case-sensitive exact match on the capability name.
func findCapability(services []domain.ServiceDescriptor, capability domain.Capability) (domain.ServiceDescriptor, bool) {
	for _, svc := range services {
		if svc.Capability == capability {
			return svc, true
		}
	}
	return domain.ServiceDescriptor{}, false
}

// Services returns a copy of the cached service list.
func (d *DiscoveryCoordinator) Services() []domain.ServiceDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.ServiceDescriptor, len(d.services))
	copy(out, d.services)
	return out
}

// Populated reports whether the service list has been fetched.
func (d *DiscoveryCoordinator) Populated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.populated
}

// Reset forgets the cached service list.
func (d *DiscoveryCoordinator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services = nil
	d.populated = false
	d.generation++
}
