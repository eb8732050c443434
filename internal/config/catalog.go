package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// catalogFile is the on-disk shape of a construct catalog.
type catalogFile struct {
	Types []typeEntry `yaml:"types"`
}

type typeEntry struct {
	Name                string        `yaml:"name"`
	Kind                string        `yaml:"kind"`
	MaxCapacity         int           `yaml:"max_capacity"`
	ProductionPerSecond float64       `yaml:"production_per_second"`
	UpgradeCost         int           `yaml:"upgrade_cost"`
	UpgradeTime         time.Duration `yaml:"upgrade_time"`
	UpgradeTarget       string        `yaml:"upgrade_target"`
	DowngradeTarget     string        `yaml:"downgrade_target"`
	ConversionCost      int           `yaml:"conversion_cost"`
	ConversionTime      time.Duration `yaml:"conversion_time"`
	Conversions         []string      `yaml:"conversions"`
	Combat              combatEntry   `yaml:"combat"`
}

type combatEntry struct {
	FireRate         float64       `yaml:"fire_rate"`
	Range            float64       `yaml:"range"`
	KillFraction     float64       `yaml:"kill_fraction"`
	DowngradeChance  float64       `yaml:"downgrade_chance"`
	Reload           time.Duration `yaml:"reload"`
	SpeedMultiplier  float64       `yaml:"speed_multiplier"`
	DamageMultiplier float64       `yaml:"damage_multiplier"`
}

// LoadCatalog reads a catalog YAML file. An empty path returns the
// default catalog.
func LoadCatalog(path string) (*conquest.Catalog, error) {
	if path == "" {
		return conquest.DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(raw []byte) (*conquest.Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	defs := make([]conquest.TypeDef, 0, len(f.Types))
	for _, e := range f.Types {
		kind, err := conquest.ParseKind(e.Kind)
		if err != nil {
			return nil, &conquest.CatalogError{Type: e.Name, Err: fmt.Errorf("%w: %v", conquest.ErrInvalidType, err)}
		}
		defs = append(defs, conquest.TypeDef{
			Name:                e.Name,
			Kind:                kind,
			MaxCapacity:         e.MaxCapacity,
			ProductionPerSecond: e.ProductionPerSecond,
			UpgradeCost:         e.UpgradeCost,
			UpgradeTime:         e.UpgradeTime,
			UpgradeTarget:       e.UpgradeTarget,
			DowngradeTarget:     e.DowngradeTarget,
			ConversionCost:      e.ConversionCost,
			ConversionTime:      e.ConversionTime,
			Conversions:         e.Conversions,
			Combat: conquest.Combat{
				FireRate:         e.Combat.FireRate,
				Range:            e.Combat.Range,
				KillFraction:     e.Combat.KillFraction,
				DowngradeChance:  e.Combat.DowngradeChance,
				Reload:           e.Combat.Reload,
				SpeedMultiplier:  e.Combat.SpeedMultiplier,
				DamageMultiplier: e.Combat.DamageMultiplier,
			},
		})
	}
	return conquest.NewCatalog(defs...)
}
