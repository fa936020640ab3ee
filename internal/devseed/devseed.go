// Package devseed loads development fixtures and writes them into a store.
//
// A seed file is a YAML (or JSON) list:
//
//	- table: users
//	  id: alice
//	  value: {name: Alice, age: 30}
//
// Each value is written as an unsigned row, keyed table:id. A raw key can be
// given instead of table and id.
package devseed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
)

// Entry is one seeded value.
type Entry struct {
	Key   string `yaml:"key"`
	Table string `yaml:"table"`
	ID    string `yaml:"id"`
	Value any    `yaml:"value"`
}

// StorageKey returns the key the entry is written under.
func (e Entry) StorageKey() (string, error) {
	switch {
	case e.Key != "" && (e.Table != "" || e.ID != ""):
		return "", fmt.Errorf("devseed: entry %q sets both key and table/id", e.Key)
	case e.Key != "":
		return e.Key, nil
	case strings.TrimSpace(e.Table) == "" || strings.TrimSpace(e.ID) == "":
		return "", fmt.Errorf("devseed: entry needs key or table and id")
	case strings.Contains(e.Table, ":"):
		return "", fmt.Errorf("devseed: table name %q must not contain \":\"", e.Table)
	default:
		return e.Table + ":" + e.ID, nil
	}
}

// Load reads entries from path.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes entries from YAML or JSON.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("devseed: decode: %w", err)
	}
	for i, e := range entries {
		if _, err := e.StorageKey(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}

// Apply writes entries to client and returns how many were written.
func Apply(ctx context.Context, client datatable.StorageClient, entries []Entry) (int, error) {
	for i, e := range entries {
		key, err := e.StorageKey()
		if err != nil {
			return i, err
		}
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return i, fmt.Errorf("devseed: encode %s: %w", key, err)
		}
		if err := client.Put(ctx, key, raw); err != nil {
			return i, fmt.Errorf("devseed: write %s: %w", key, err)
		}
	}
	return len(entries), nil
}
