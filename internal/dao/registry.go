// Package dao holds the registry of governance spaces the dashboard follows.
package dao

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes one followed DAO. Counts are the static fallbacks shown
// when the hub has not been queried yet.
type Config struct {
	Key          string  `json:"key" yaml:"key"`
	Name         string  `json:"name" yaml:"name"`
	Logo         string  `json:"logo" yaml:"logo"`
	Source       string  `json:"source" yaml:"source"`
	Identifier   string  `json:"identifier" yaml:"identifier"`
	TotalMembers int     `json:"totalMembers,omitempty" yaml:"totalMembers"`
	Proposals    int     `json:"proposals,omitempty" yaml:"proposals"`
	Votes        float64 `json:"votes,omitempty" yaml:"votes"`
}

// NotFoundError is returned when no registered DAO matches a key or identifier.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dao %q not found", e.Ref)
}

// Registry is an immutable set of DAO configs addressed by key.
type Registry struct {
	byKey map[string]Config
	keys  []string
}

// NewRegistry builds a registry; duplicate keys or identifiers are rejected.
func NewRegistry(items []Config) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Config, len(items))}
	identifiers := make(map[string]string, len(items))
	for _, item := range items {
		item.Key = strings.ToLower(strings.TrimSpace(item.Key))
		item.Identifier = strings.TrimSpace(item.Identifier)
		if item.Key == "" || item.Identifier == "" {
			return nil, fmt.Errorf("dao entry %q: key and identifier are required", item.Name)
		}
		if _, dup := r.byKey[item.Key]; dup {
			return nil, fmt.Errorf("dao entry %q: duplicate key", item.Key)
		}
		if other, dup := identifiers[item.Identifier]; dup {
			return nil, fmt.Errorf("dao entry %q: identifier %s already used by %q", item.Key, item.Identifier, other)
		}
		if item.Source == "" {
			item.Source = "snapshot"
		}
		identifiers[item.Identifier] = item.Key
		r.byKey[item.Key] = item
		r.keys = append(r.keys, item.Key)
	}
	sort.Strings(r.keys)
	return r, nil
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := NewRegistry(defaults)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadFile reads a YAML list of DAO configs; an empty path yields Default.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dao registry: %w", err)
	}
	var doc struct {
		DAOs []Config `yaml:"daos"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse dao registry: %w", err)
	}
	if len(doc.DAOs) == 0 {
		return nil, fmt.Errorf("dao registry %s has no entries", path)
	}
	return NewRegistry(doc.DAOs)
}

// Lookup finds a DAO by registry key ("aave").
func (r *Registry) Lookup(key string) (Config, error) {
	item, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Config{}, &NotFoundError{Ref: key}
	}
	return item, nil
}

// ByIdentifier finds a DAO by its Snapshot space id ("aavedao.eth").
func (r *Registry) ByIdentifier(identifier string) (Config, error) {
	for _, key := range r.keys {
		if item := r.byKey[key]; item.Identifier == identifier {
			return item, nil
		}
	}
	return Config{}, &NotFoundError{Ref: identifier}
}

// ByName matches the display name case-insensitively.
func (r *Registry) ByName(name string) (Config, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, key := range r.keys {
		if item := r.byKey[key]; strings.ToLower(item.Name) == needle {
			return item, nil
		}
	}
	return Config{}, &NotFoundError{Ref: name}
}

// Resolve accepts a key, a space identifier or a display name.
func (r *Registry) Resolve(ref string) (Config, error) {
	if item, err := r.Lookup(ref); err == nil {
		return item, nil
	}
	if item, err := r.ByIdentifier(ref); err == nil {
		return item, nil
	}
	return r.ByName(ref)
}

// All returns every DAO ordered by key.
func (r *Registry) All() []Config {
	out := make([]Config, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.byKey[key])
	}
	return out
}

var defaults = []Config{
	{Key: "aave", Name: "Aave", Logo: "/aave-aave-logo.svg", Identifier: "aavedao.eth", TotalMembers: 184598, Proposals: 364, Votes: 5.6},
	{Key: "arbitrum", Name: "Arbitrum", Logo: "/arbitrum-arb-logo.svg", Identifier: "arbitrumfoundation.eth", TotalMembers: 1428677, Proposals: 364, Votes: 5.6},
	{Key: "balancer", Name: "Balancer", Logo: "/balancer-bal-logo.svg", Identifier: "balancer.eth", TotalMembers: 49111, Proposals: 364, Votes: 5.6},
	{Key: "gnosis", Name: "Gnosis", Logo: "/gnosis-gno-gno-logo.svg", Identifier: "gnosis.eth", TotalMembers: 56191, Proposals: 364, Votes: 5.6},
	{Key: "lido", Name: "Lido", Logo: "/lido-dao-ldo-logo.svg", Identifier: "lido-snapshot.eth", TotalMembers: 52055, Proposals: 364, Votes: 5.6},
	{Key: "uniswap", Name: "Uniswap", Logo: "/uniswap-uni-logo.svg", Identifier: "uniswapgovernance.eth", TotalMembers: 360515, Proposals: 364, Votes: 5.6},
}
