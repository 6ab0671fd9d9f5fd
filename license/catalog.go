package license

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/license-engine/generic"
)

// =============================================================================
// POLICY CATALOG - Per-category policy lookup
// =============================================================================

// Catalog resolves policies. GetPolicy returns soft-deleted policies too so
// that existing requests keep resolving; callers creating new requests use
// ActivePolicy.
type Catalog interface {
	GetPolicy(ctx context.Context, id PolicyID) (Policy, error)
	ListPolicies(ctx context.Context) ([]Policy, error)
}

// PolicyAdmin is the administrative write path of a catalog.
type PolicyAdmin interface {
	Catalog
	SavePolicy(ctx context.Context, p Policy) error
	DeletePolicy(ctx context.Context, id PolicyID) error
}

// ActivePolicy resolves a policy for a new request. Retired policies are
// reported as not found.
func ActivePolicy(ctx context.Context, c Catalog, id PolicyID) (Policy, error) {
	p, err := c.GetPolicy(ctx, id)
	if err != nil {
		return Policy{}, err
	}
	if p.Deleted {
		return Policy{}, fmt.Errorf("%w: %s is retired", generic.ErrPolicyNotFound, id)
	}
	return p, nil
}

// =============================================================================
// MEMORY CATALOG
// =============================================================================

// MemoryCatalog is an in-process catalog. It is injected where a catalog is
// needed and has no package-level instance.
type MemoryCatalog struct {
	mu       sync.RWMutex
	policies map[PolicyID]Policy
}

func NewMemoryCatalog(policies ...Policy) *MemoryCatalog {
	c := &MemoryCatalog{policies: make(map[PolicyID]Policy, len(policies))}
	for _, p := range policies {
		c.policies[p.ID] = p
	}
	return c
}

func (c *MemoryCatalog) GetPolicy(_ context.Context, id PolicyID) (Policy, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.policies[id]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", generic.ErrPolicyNotFound, id)
	}
	return p, nil
}

// ListPolicies returns active policies ordered by name.
func (c *MemoryCatalog) ListPolicies(_ context.Context) ([]Policy, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Policy, 0, len(c.policies))
	for _, p := range c.policies {
		if !p.Deleted {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (c *MemoryCatalog) SavePolicy(_ context.Context, p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies[p.ID] = p
	return nil
}

// DeletePolicy soft-deletes. The policy stays resolvable through GetPolicy.
func (c *MemoryCatalog) DeletePolicy(_ context.Context, id PolicyID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.policies[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrPolicyNotFound, id)
	}
	p.Deleted = true
	c.policies[id] = p
	return nil
}

var _ PolicyAdmin = (*MemoryCatalog)(nil)
