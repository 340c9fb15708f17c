package config

import "sync"

// Provider hands out immutable provisioning snapshots. Sagas call Snapshot
// once at the start of a run; Replace swaps the live config for subsequent
// runs without touching snapshots already taken.
type Provider struct {
	mu      sync.RWMutex
	current ProvisioningConfig
}

// NewProvider seeds a provider with the loaded provisioning section.
func NewProvider(p ProvisioningConfig) *Provider {
	return &Provider{current: p.Clone()}
}

// Snapshot returns a deep copy of the current provisioning config.
func (p *Provider) Snapshot() ProvisioningConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Clone()
}

// Replace swaps the live provisioning config. In-flight sagas keep the
// snapshot they started with.
func (p *Provider) Replace(next ProvisioningConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = next.Clone()
}
