package tenant

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Tenants []*Tenant `yaml:"tenants"`
}

// LoadSeed decodes a YAML tenant list:
//
//	tenants:
//	  - id: 7f0c...
//	    name: Acme
//	    slug: acme
//	    domains: [video.acme.com]
//	    status: active
func LoadSeed(r io.Reader) ([]*Tenant, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("tenant: decode seed: %w", err)
	}
	now := time.Now().UTC()
	for i, t := range f.Tenants {
		if t == nil {
			return nil, fmt.Errorf("tenant: seed entry %d is empty", i)
		}
		if t.Status == "" {
			t.Status = StatusActive
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tenant: seed entry %d (%s): %w", i, t.Slug, err)
		}
	}
	return f.Tenants, nil
}

// LoadSeedFile reads path and returns a MemoryDirectory populated from it.
func LoadSeedFile(path string) (*MemoryDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tenant: open seed: %w", err)
	}
	defer f.Close()

	tenants, err := LoadSeed(f)
	if err != nil {
		return nil, err
	}
	return NewMemoryDirectory(tenants...)
}
