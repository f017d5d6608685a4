package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgo/docrepo/internal/docstore"
)

// Provisioner applies manifests to a store.
type Provisioner struct {
	store  docstore.Store
	logger *slog.Logger
}

// NewProvisioner creates a provisioner. A nil logger uses slog.Default.
func NewProvisioner(store docstore.Store, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{store: store, logger: logger}
}

// Result reports what a run changed.
type Result struct {
	Created []string `json:"created,omitempty" yaml:"created,omitempty"`
	Dropped []string `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Ensure creates every manifest collection that does not exist yet.
// Existing collections keep their data and indexes.
func (p *Provisioner) Ensure(ctx context.Context, m *Manifest) (*Result, error) {
	res := &Result{}
	for _, c := range m.Collections {
		exists, err := p.store.HasCollection(ctx, c.Name)
		if err != nil {
			return res, fmt.Errorf("check collection %s: %w", c.Name, err)
		}
		if exists {
			p.logger.Info("collection already provisioned", slog.String("collection", c.Name))
			res.Skipped = append(res.Skipped, c.Name)
			continue
		}
		if err := p.store.AddCollection(ctx, c.Name, c.Indexes...); err != nil {
			return res, fmt.Errorf("create collection %s: %w", c.Name, err)
		}
		p.logger.Info("collection created",
			slog.String("collection", c.Name),
			slog.Int("indexes", len(c.Indexes)),
		)
		res.Created = append(res.Created, c.Name)
	}
	return res, nil
}

// Drop removes the named collections that exist. Missing ones are skipped.
func (p *Provisioner) Drop(ctx context.Context, names ...string) (*Result, error) {
	res := &Result{}
	for _, name := range names {
		exists, err := p.store.HasCollection(ctx, name)
		if err != nil {
			return res, fmt.Errorf("check collection %s: %w", name, err)
		}
		if !exists {
			p.logger.Info("collection not present", slog.String("collection", name))
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if err := p.store.DropCollection(ctx, name); err != nil {
			return res, fmt.Errorf("drop collection %s: %w", name, err)
		}
		p.logger.Warn("collection dropped", slog.String("collection", name))
		res.Dropped = append(res.Dropped, name)
	}
	return res, nil
}
