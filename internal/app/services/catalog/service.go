// Package catalog provides the read-only quest definition registry.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

// ErrNotFound is returned when a quest id or slug is unknown.
var ErrNotFound = errors.New("quest not found")

// Catalog is an immutable registry of quest definitions. It is built once at
// load time and never mutated, so reads need no synchronization.
type Catalog struct {
	byID   map[string]quest.Definition
	bySlug map[string]quest.Definition
	order  []string
}

// Load builds a catalog from a YAML file. An empty path yields the seeded
// default catalog.
func Load(path string, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	if strings.TrimSpace(path) == "" {
		log.Info("no catalog path configured; using seeded quests")
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quest catalog: %w", err)
	}

	var file struct {
		Quests []quest.Definition `yaml:"quests"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse quest catalog: %w", err)
	}
	if len(file.Quests) == 0 {
		return nil, fmt.Errorf("quest catalog %s contains no quests", path)
	}

	cat, err := build(file.Quests)
	if err != nil {
		return nil, err
	}
	log.WithField("quests", len(file.Quests)).WithField("path", path).Info("quest catalog loaded")
	return cat, nil
}

// Default returns the seeded demo catalog.
func Default() *Catalog {
	cat, _ := build([]quest.Definition{
		{
			ID:          "liquidity-kata",
			Slug:        "liquidity-kata",
			Title:       "Liquidity Kata",
			Description: "Provide liquidity to the practice pool without getting rekt.",
			Difficulty:  1,
			Rules: quest.Rules{
				Type:      "liquidity-kata",
				Pair:      "STX/sBTC",
				MinAmount: 1,
				Weights: map[string]float64{
					quest.ActionProvideLiquidity.String(): 1.0,
				},
			},
			Reward: quest.Reward{XP: 50, BadgeID: "liquidity-kata"},
			Active: true,
		},
		{
			ID:          "oracle-sight",
			Slug:        "oracle-sight",
			Title:       "Oracle Sight",
			Description: "Predict the next price move and learn to size your confidence.",
			Difficulty:  2,
			Rules: quest.Rules{
				Type: "price-prediction",
				Weights: map[string]float64{
					quest.ActionPredictPrice.String(): 1.0,
				},
			},
			Reward: quest.Reward{XP: 75, BadgeID: "oracle-sight"},
			Active: true,
		},
		{
			ID:          "onchain-proof",
			Slug:        "onchain-proof",
			Title:       "On-Chain Proof",
			Description: "Broadcast a real transaction and submit its id as proof.",
			Difficulty:  3,
			Rules: quest.Rules{
				Type: "tx-proof",
				Weights: map[string]float64{
					quest.ActionSubmitTxProof.String(): 1.0,
				},
			},
			Reward: quest.Reward{XP: 100, BadgeID: "onchain-proof"},
			Active: true,
		},
	})
	return cat
}

func build(defs []quest.Definition) (*Catalog, error) {
	cat := &Catalog{
		byID:   make(map[string]quest.Definition, len(defs)),
		bySlug: make(map[string]quest.Definition, len(defs)),
	}
	now := time.Now().UTC()
	for _, def := range defs {
		if def.ID == "" {
			def.ID = uuid.NewString()
		}
		if def.Slug == "" {
			def.Slug = def.ID
		}
		if def.CreatedAt.IsZero() {
			def.CreatedAt = now
		}
		if _, dup := cat.byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate quest id %q", def.ID)
		}
		if _, dup := cat.bySlug[def.Slug]; dup {
			return nil, fmt.Errorf("duplicate quest slug %q", def.Slug)
		}
		cat.byID[def.ID] = def
		cat.bySlug[def.Slug] = def
		cat.order = append(cat.order, def.ID)
	}
	sort.Strings(cat.order)
	return cat, nil
}

// Get returns the quest definition for an id.
func (c *Catalog) Get(id string) (quest.Definition, error) {
	def, ok := c.byID[id]
	if !ok {
		return quest.Definition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return def, nil
}

// GetBySlug returns the quest definition for a slug.
func (c *Catalog) GetBySlug(slug string) (quest.Definition, error) {
	def, ok := c.bySlug[slug]
	if !ok {
		return quest.Definition{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return def, nil
}

// List returns active quest definitions in stable order.
func (c *Catalog) List() []quest.Definition {
	result := make([]quest.Definition, 0, len(c.order))
	for _, id := range c.order {
		if def := c.byID[id]; def.Active {
			result = append(result, def)
		}
	}
	return result
}

// ListAll returns every quest definition, active or not, in stable order.
func (c *Catalog) ListAll() []quest.Definition {
	result := make([]quest.Definition, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.byID[id])
	}
	return result
}
