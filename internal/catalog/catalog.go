// Package catalog supplies the advisory bundle-catalog and periodic
// demand-generator collaborators the core negotiation engine treats as
// external per §1: a file-backed catalog reader and a ticker-driven
// demand emitter, neither of which the Orchestrator strictly needs to
// function.
package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"negotiator/internal/domain"
)

// Provider lists the bundles a run may offer against, keyed by seller.
type Provider interface {
	Bundles(ctx context.Context) (map[string][]domain.Bundle, error)
}

// document is the on-disk shape of a catalog file.
type document struct {
	Sellers map[string][]bundleDoc `yaml:"sellers"`
}

type bundleDoc struct {
	ID         string            `yaml:"id"`
	Items      []itemDoc         `yaml:"items"`
	SynergyMin float64           `yaml:"synergyMin"`
	SynergyMax float64           `yaml:"synergyMax"`
	Weights    map[string]float64 `yaml:"weights"`
	Metadata   map[string]string `yaml:"metadata"`
}

type itemDoc struct {
	Product  string `yaml:"product"`
	Quantity int    `yaml:"quantity"`
}

// FileProvider reads a static catalog document from disk on every call,
// so a live edit to the file takes effect on the next run without a
// restart.
type FileProvider struct {
	Path string
}

// NewFileProvider constructs a FileProvider reading from path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Bundles parses the catalog document at p.Path.
func (p *FileProvider) Bundles(ctx context.Context) (map[string][]domain.Bundle, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", p.Path, err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", p.Path, err)
	}
	out := make(map[string][]domain.Bundle, len(doc.Sellers))
	for sellerID, bundles := range doc.Sellers {
		converted := make([]domain.Bundle, 0, len(bundles))
		for _, b := range bundles {
			items := make([]domain.BundleItem, len(b.Items))
			for i, it := range b.Items {
				items[i] = domain.BundleItem{Product: domain.Product(it.Product), Quantity: it.Quantity}
			}
			weights := make(map[domain.IssueName]float64, len(b.Weights))
			for k, v := range b.Weights {
				weights[domain.IssueName(k)] = v
			}
			bundle, err := domain.NewBundle(b.ID, items, b.SynergyMin, b.SynergyMax, weights, b.Metadata)
			if err != nil {
				return nil, fmt.Errorf("catalog: seller %s: %w", sellerID, err)
			}
			converted = append(converted, bundle)
		}
		out[sellerID] = converted
	}
	return out, nil
}

// Ticker emits a demand string on a fixed interval, standing in for the
// demand-generator the spec treats as an external collaborator.
type Ticker struct {
	Interval time.Duration
	Next     func() string
}

// Run invokes emit with each generated demand string until ctx is done.
func (t *Ticker) Run(ctx context.Context, emit func(string)) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.Next != nil {
				emit(t.Next())
			}
		}
	}
}
