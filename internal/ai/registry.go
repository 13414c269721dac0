package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a provider from a decrypted key and a model id. It must not do I/O.
type Factory func(apiKey, modelID string) Provider

// Descriptor is everything the registry knows about one provider.
type Descriptor struct {
	Capability     Capability `json:"capability"`
	Name           string     `json:"name"`
	Models         []string   `json:"models"`
	CredentialKeys []string   `json:"credential_keys"`
	New            Factory    `json:"-"`
}

type registryKey struct {
	capability Capability
	name       string
}

// Registry maps (capability, name) to a provider descriptor. It is filled once
// at startup and only read afterwards.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[registryKey]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[registryKey]Descriptor)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(d Descriptor) {
	if !d.Capability.Valid() {
		panic(fmt.Sprintf("ai: invalid capability %q for provider %q", d.Capability, d.Name))
	}
	if d.New == nil {
		panic(fmt.Sprintf("ai: provider %q registered without factory", d.Name))
	}
	d.Name = normalizeName(d.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[registryKey{d.Capability, d.Name}] = d
}

// Resolve returns the descriptor for (capability, name). ok is false for unknown providers.
func (r *Registry) Resolve(capability Capability, name string) (Descriptor, bool) {
	r.mu.RLock()
	d, ok := r.descriptors[registryKey{capability, normalizeName(name)}]
	r.mu.RUnlock()
	return d, ok
}

// AcceptedKeys lists the credential key names a provider accepts, in precedence order.
// Unknown providers and keyless providers both return nil.
func (r *Registry) AcceptedKeys(capability Capability, name string) []string {
	d, ok := r.Resolve(capability, name)
	if !ok {
		return nil
	}
	return append([]string(nil), d.CredentialKeys...)
}

// Providers returns the descriptors for one capability sorted by name.
func (r *Registry) Providers(capability Capability) []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.descriptors))
	for k, d := range r.descriptors {
		if k.capability == capability {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Text(name, apiKey, modelID string) (TextProvider, bool) {
	d, ok := r.Resolve(CapabilityText, name)
	if !ok {
		return nil, false
	}
	p, ok := d.New(apiKey, modelID).(TextProvider)
	return p, ok
}

func (r *Registry) Image(name, apiKey, modelID string) (ImageProvider, bool) {
	d, ok := r.Resolve(CapabilityImage, name)
	if !ok {
		return nil, false
	}
	p, ok := d.New(apiKey, modelID).(ImageProvider)
	return p, ok
}

func (r *Registry) Vision(name, apiKey, modelID string) (VisionProvider, bool) {
	d, ok := r.Resolve(CapabilityVision, name)
	if !ok {
		return nil, false
	}
	p, ok := d.New(apiKey, modelID).(VisionProvider)
	return p, ok
}

// Instance builds a provider of any capability, used for credential validation.
func (r *Registry) Instance(capability Capability, name, apiKey, modelID string) (Provider, bool) {
	d, ok := r.Resolve(capability, name)
	if !ok {
		return nil, false
	}
	return d.New(apiKey, modelID), true
}
