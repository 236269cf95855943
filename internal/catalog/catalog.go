// Package catalog loads the content datasets the resolver serves: canonical
// entries, the alias term table, the curated cross-language map and the
// localized modules. Files are YAML.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/alias"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
)

const maxParallelLoads = 4

type entriesFile struct {
	Entries []content.Entry `yaml:"entries"`
}

type moduleFile struct {
	Category string                    `yaml:"category"`
	Language string                    `yaml:"language"`
	Records  []content.LocalizedRecord `yaml:"records"`
}

// LoadEntries reads and validates the canonical entries in path. Every
// invalid entry is reported; a duplicate EntryID is an error.
func LoadEntries(path string) ([]content.Entry, error) {
	var file entriesFile
	if err := decodeFile(path, &file); err != nil {
		return nil, err
	}

	v := NewValidator()
	seen := make(map[string]struct{}, len(file.Entries))
	var errs []error
	for i, e := range file.Entries {
		if err := v.ValidateEntry(e); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%q): %w", i, e.EntryID, err))
			continue
		}
		if _, dup := seen[e.EntryID]; dup {
			errs = append(errs, fmt.Errorf("entry %d: duplicate entry id %q", i, e.EntryID))
			continue
		}
		seen[e.EntryID] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("loading entries from %s: %w", path, errors.Join(errs...))
	}

	slog.Info("entries loaded", "path", path, "count", len(file.Entries))
	return file.Entries, nil
}

// LoadAliases reads an `entryId: [terms...]` file into an alias table.
func LoadAliases(path string) (*alias.Table, error) {
	groups := make(map[string][]string)
	if err := decodeFile(path, &groups); err != nil {
		return nil, err
	}
	t := alias.FromGroups(groups)
	slog.Info("aliases loaded", "path", path, "terms", t.Len())
	return t, nil
}

// LoadCuratedMap reads a `compositeId: canonicalId` file. Keys and values
// are trimmed; blank pairs are dropped.
func LoadCuratedMap(path string) (map[string]string, error) {
	raw := make(map[string]string)
	if err := decodeFile(path, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	slog.Info("curated map loaded", "path", path, "pairs", len(out))
	return out, nil
}

// LoadModules reads every *.yaml file in dir as one localized module. Files
// are parsed concurrently; modules are returned sorted by category. Two
// files declaring the same category are an error.
func LoadModules(ctx context.Context, dir string) ([]*StaticModule, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing modules in %s: %w", dir, err)
	}
	sort.Strings(matches)

	modules := make([]*StaticModule, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, path := range matches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := LoadModule(path)
			if err != nil {
				return err
			}
			modules[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(modules, func(i, j int) bool {
		return modules[i].Category() < modules[j].Category()
	})
	for i := 1; i < len(modules); i++ {
		if modules[i].Category() == modules[i-1].Category() {
			return nil, fmt.Errorf("loading modules from %s: duplicate category %q", dir, modules[i].Category())
		}
	}
	slog.Info("modules loaded", "dir", dir, "count", len(modules))
	return modules, nil
}

// LoadModule reads a single module file.
func LoadModule(path string) (*StaticModule, error) {
	var file moduleFile
	if err := decodeFile(path, &file); err != nil {
		return nil, err
	}
	if strings.TrimSpace(file.Category) == "" {
		return nil, fmt.Errorf("module %s: category is required", path)
	}
	m, err := NewStaticModule(file.Category, file.Language, file.Records)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", path, err)
	}
	return m, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
