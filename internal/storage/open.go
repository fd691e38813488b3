package storage

import "fmt"

// Preference is the order in which backends are tried when none is named
var Preference = []string{"sqlite", "badger", "file", "memory"}

// Resolve returns the backend name to use. An explicit name must be
// registered; an empty name picks the first registered entry of Preference.
func (r *Registry) Resolve(name string) (string, error) {
	registered := make(map[string]bool)
	for _, n := range r.List() {
		registered[n] = true
	}

	if name != "" {
		if !registered[name] {
			return "", fmt.Errorf("backend %s not registered (available: %v)", name, r.List())
		}
		return name, nil
	}

	for _, n := range Preference {
		if registered[n] {
			return n, nil
		}
	}
	return "", fmt.Errorf("no storage backend registered")
}

// Resolve picks a backend name from the global registry
func Resolve(name string) (string, error) {
	return defaultRegistry.Resolve(name)
}
