package backend

import (
	"fmt"
	"sort"
	"sync"
)

// ServiceInfo pairs a translation service name with its engine description.
type ServiceInfo struct {
	Name string `json:"name"`
	Info Info   `json:"info"`
}

// Registry maps translation service names (google, bing) to the engine that
// serves them.
type Registry struct {
	mu          sync.RWMutex
	translators map[string]Translator
}

// NewRegistry creates an empty translator registry.
func NewRegistry() *Registry {
	return &Registry{
		translators: make(map[string]Translator),
	}
}

// Register adds a translator to the registry under the given service name.
func (r *Registry) Register(service string, t Translator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[service] = t
}

// Resolve returns the translator for service.
// Returns an error if no translator is registered under that name.
func (r *Registry) Resolve(service string) (Translator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.translators[service]
	if !ok {
		return nil, fmt.Errorf("translation service %q is not registered", service)
	}
	return t, nil
}

// List returns information about all registered services, sorted by name
// for a stable API response.
func (r *Registry) List() []ServiceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ServiceInfo, 0, len(r.translators))
	for name, t := range r.translators {
		infos = append(infos, ServiceInfo{
			Name: name,
			Info: t.Info(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
