package conquest

import (
	"fmt"
	"slices"
	"time"
)

// Kind is the construct family a type belongs to.
type Kind string

const (
	House   Kind = "house"
	Turret  Kind = "turret"
	Mortar  Kind = "mortar"
	Helipad Kind = "helipad"
	Forge   Kind = "forge"
)

// ParseKind converts a lowercase kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case House, Turret, Mortar, Helipad, Forge:
		return k, nil
	}
	return "", fmt.Errorf("unknown construct kind %q", s)
}

// Combat holds kind-specific parameters. Only the fields for the owning
// type's Kind are read.
type Combat struct {
	// Turret
	FireRate float64 `json:"fire_rate,omitempty"` // shots per second
	Range    float64 `json:"range,omitempty"`

	// Mortar (also uses Range)
	KillFraction    float64       `json:"kill_fraction,omitempty"`
	DowngradeChance float64       `json:"downgrade_chance,omitempty"`
	Reload          time.Duration `json:"reload,omitempty"`

	// Helipad
	SpeedMultiplier float64 `json:"speed_multiplier,omitempty"`

	// Forge
	DamageMultiplier float64 `json:"damage_multiplier,omitempty"`
}

// TypeDef is an immutable construct type definition. Upgrade, downgrade and
// conversion targets are type names resolved through the Catalog.
type TypeDef struct {
	Name                string
	Kind                Kind
	MaxCapacity         int
	ProductionPerSecond float64
	UpgradeCost         int
	UpgradeTime         time.Duration
	UpgradeTarget       string
	DowngradeTarget     string
	ConversionCost      int
	ConversionTime      time.Duration
	Conversions         []string
	Combat              Combat
}

// IsProducer reports whether constructs of this type generate units.
func (t *TypeDef) IsProducer() bool {
	return t.Kind == House && t.ProductionPerSecond > 0
}

// CanConvertTo reports whether a lateral conversion edge to name exists.
func (t *TypeDef) CanConvertTo(name string) bool {
	return slices.Contains(t.Conversions, name)
}

// Catalog is the set of construct types available in a match.
type Catalog struct {
	types map[string]*TypeDef
	order []string
}

// NewCatalog builds and validates a catalog from the given definitions.
func NewCatalog(defs ...TypeDef) (*Catalog, error) {
	c := &Catalog{types: make(map[string]*TypeDef, len(defs))}
	for i := range defs {
		d := defs[i]
		if d.Name == "" {
			return nil, &CatalogError{Type: fmt.Sprintf("#%d", i), Err: ErrInvalidType}
		}
		if _, dup := c.types[d.Name]; dup {
			return nil, &CatalogError{Type: d.Name, Err: fmt.Errorf("%w: duplicate name", ErrInvalidType)}
		}
		d.Conversions = slices.Clone(d.Conversions)
		c.types[d.Name] = &d
		c.order = append(c.order, d.Name)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get looks up a type by name.
func (c *Catalog) Get(name string) (*TypeDef, bool) {
	t, ok := c.types[name]
	return t, ok
}

// Names returns type names in definition order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.order)
}

// UpgradeOf returns t's upgrade target, or nil.
func (c *Catalog) UpgradeOf(t *TypeDef) *TypeDef {
	if t == nil || t.UpgradeTarget == "" {
		return nil
	}
	return c.types[t.UpgradeTarget]
}

// DowngradeOf returns t's downgrade target, or nil.
func (c *Catalog) DowngradeOf(t *TypeDef) *TypeDef {
	if t == nil || t.DowngradeTarget == "" {
		return nil
	}
	return c.types[t.DowngradeTarget]
}

// Validate checks that every referenced type exists, numeric fields are
// sane and the upgrade graph is acyclic. Conversion edges may form cycles.
func (c *Catalog) Validate() error {
	for _, name := range c.order {
		t := c.types[name]
		if _, err := ParseKind(string(t.Kind)); err != nil {
			return &CatalogError{Type: name, Err: fmt.Errorf("%w: %v", ErrInvalidType, err)}
		}
		if t.MaxCapacity < 0 || t.ProductionPerSecond < 0 || t.UpgradeCost < 0 || t.ConversionCost < 0 ||
			t.UpgradeTime < 0 || t.ConversionTime < 0 {
			return &CatalogError{Type: name, Err: fmt.Errorf("%w: negative value", ErrInvalidType)}
		}
		refs := append([]string{t.UpgradeTarget, t.DowngradeTarget}, t.Conversions...)
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			if _, ok := c.types[ref]; !ok {
				return &CatalogError{Type: name, Err: fmt.Errorf("%w: %q", ErrUnknownType, ref)}
			}
		}
		if t.UpgradeTarget == name {
			return &CatalogError{Type: name, Err: ErrUpgradeCycle}
		}
	}

	// Each type has at most one upgrade edge, so walking the chain with
	// visit colors finds any cycle.
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(c.types))
	for _, start := range c.order {
		if color[start] != white {
			continue
		}
		var path []string
		cur := start
		for cur != "" && color[cur] == white {
			color[cur] = grey
			path = append(path, cur)
			cur = c.types[cur].UpgradeTarget
		}
		if cur != "" && color[cur] == grey {
			return &CatalogError{Type: cur, Err: ErrUpgradeCycle}
		}
		for _, n := range path {
			color[n] = black
		}
	}
	return nil
}

// Type names used by DefaultCatalog.
const (
	TypeHouse1  = "House1"
	TypeHouse2  = "House2"
	TypeHouse3  = "House3"
	TypeHouse4  = "House4"
	TypeTurret  = "Turret"
	TypeMortar  = "Mortar"
	TypeHelipad = "Helipad"
	TypeForge   = "Forge"
)

// DefaultCatalog returns the standard construct set: a four-level House
// chain plus Turret, Mortar, Helipad and Forge reachable by conversion.
func DefaultCatalog() *Catalog {
	const (
		upgradeTime    = 5 * time.Second
		conversionCost = 30
		conversionTime = 4 * time.Second
	)
	lateral := func(names ...string) []string { return names }

	c, err := NewCatalog(
		TypeDef{
			Name: TypeHouse1, Kind: House, MaxCapacity: 20, ProductionPerSecond: 0.5,
			UpgradeCost: 50, UpgradeTime: upgradeTime, UpgradeTarget: TypeHouse2,
			ConversionCost: conversionCost, ConversionTime: conversionTime,
			Conversions: lateral(TypeTurret, TypeMortar, TypeForge),
		},
		TypeDef{
			Name: TypeHouse2, Kind: House, MaxCapacity: 30, ProductionPerSecond: 0.75,
			UpgradeCost: 75, UpgradeTime: upgradeTime, UpgradeTarget: TypeHouse3, DowngradeTarget: TypeHouse1,
		},
		TypeDef{
			Name: TypeHouse3, Kind: House, MaxCapacity: 40, ProductionPerSecond: 1.0,
			UpgradeCost: 100, UpgradeTime: upgradeTime, UpgradeTarget: TypeHouse4, DowngradeTarget: TypeHouse2,
		},
		TypeDef{
			Name: TypeHouse4, Kind: House, MaxCapacity: 50, ProductionPerSecond: 1.25,
			DowngradeTarget: TypeHouse3,
		},
		TypeDef{
			Name: TypeTurret, Kind: Turret,
			ConversionCost: conversionCost, ConversionTime: conversionTime,
			Conversions: lateral(TypeHouse1, TypeHelipad),
			Combat:      Combat{FireRate: 1, Range: 2},
		},
		TypeDef{
			Name: TypeMortar, Kind: Mortar,
			ConversionCost: conversionCost, ConversionTime: conversionTime,
			Conversions: lateral(TypeHouse1),
			Combat:      Combat{KillFraction: 0.5, DowngradeChance: 0.5, Range: 6, Reload: 8 * time.Second},
		},
		TypeDef{
			Name: TypeHelipad, Kind: Helipad,
			ConversionCost: conversionCost, ConversionTime: conversionTime,
			Conversions: lateral(TypeTurret, TypeHouse1),
			Combat:      Combat{SpeedMultiplier: 1.5},
		},
		TypeDef{
			Name: TypeForge, Kind: Forge,
			ConversionCost: conversionCost, ConversionTime: conversionTime,
			Conversions: lateral(TypeHouse1),
			Combat:      Combat{DamageMultiplier: 1.2},
		},
	)
	if err != nil {
		panic(err) // static data
	}
	return c
}
