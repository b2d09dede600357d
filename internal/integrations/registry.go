// Package integrations groups the clients of third-party services a tenant
// can configure in its settings.
package integrations

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"crm-gin/internal/models"
)

// Tester checks that a settings section holds working credentials
type Tester interface {
	// Section is the settings section the tester validates (smtp, ovh...)
	Section() string
	Test(ctx context.Context, settings models.TenantSettings) error
}

// TesterFunc adapts a function to Tester
type TesterFunc struct {
	Name string
	Fn   func(ctx context.Context, settings models.TenantSettings) error
}

func (t TesterFunc) Section() string { return t.Name }

func (t TesterFunc) Test(ctx context.Context, settings models.TenantSettings) error {
	return t.Fn(ctx, settings)
}

// Registry maps settings sections to their connection testers
type Registry struct {
	mu      sync.RWMutex
	testers map[string]Tester
}

func NewRegistry() *Registry {
	return &Registry{testers: make(map[string]Tester)}
}

// Register adds a tester, replacing any previous one for the same section
func (r *Registry) Register(t Tester) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testers[t.Section()] = t
}

func (r *Registry) Get(section string) (Tester, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.testers[section]
	if !ok {
		return nil, fmt.Errorf("no tester registered for section %q", section)
	}
	return t, nil
}

// Sections lists the sections that can be tested, sorted
func (r *Registry) Sections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.testers))
	for s := range r.testers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
