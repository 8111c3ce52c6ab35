package config

import "sync"

// CollectionConfigs holds the latest CollectionConfig for each known
// collection, so processing threads can see configuration changes
// before they've been committed to the collection's control metadata
// (spec §3/§4: "thread-safe map of collection name -> latest
// CollectionConfig; returns independent clones"). Grounded on the
// original src/jsonxapian/collconfigs.{h,cc}.
type CollectionConfigs struct {
	mu      sync.Mutex
	configs map[string]*CollectionConfig
}

// NewCollectionConfigs returns an empty registry.
func NewCollectionConfigs() *CollectionConfigs {
	return &CollectionConfigs{configs: make(map[string]*CollectionConfig)}
}

// Get returns an independent clone of the configuration registered for
// collName, or (nil, false) if none is known.
func (c *CollectionConfigs) Get(collName string) (*CollectionConfig, bool, error) {
	c.mu.Lock()
	cfg, ok := c.configs[collName]
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	clone, err := cfg.Clone()
	if err != nil {
		return nil, false, err
	}
	return clone, true, nil
}

// Set registers cfg (a clone of it, so later caller mutations don't
// leak into the registry) as the latest configuration for its name.
func (c *CollectionConfigs) Set(cfg *CollectionConfig) error {
	clone, err := cfg.Clone()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.configs[cfg.Name] = clone
	c.mu.Unlock()
	return nil
}

// Delete removes any configuration registered for collName.
func (c *CollectionConfigs) Delete(collName string) {
	c.mu.Lock()
	delete(c.configs, collName)
	c.mu.Unlock()
}
