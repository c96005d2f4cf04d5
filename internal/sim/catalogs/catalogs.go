package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Catalogs struct {
	Resources  ResourceCatalog
	Recipes    RecipeCatalog
	Nodes      NodeCatalog
	Blueprints BlueprintCatalog
	Animals    AnimalCatalog
	Salvage    SalvageCatalog
}

type ResourceCatalog struct {
	Defs   map[string]ResourceDef
	Digest string
}

// ResourceDef describes a fungible resource or discrete item type. Tags make
// recipes generic ("any MEAT") without a recipe entry per concrete resource.
type ResourceDef struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags,omitempty"`
	// Discrete items (equipment) occupy one slot each instead of stacking
	// against cell capacity.
	Discrete bool `json:"discrete,omitempty"`
	// Edible resources satisfy hunger by this much when eaten.
	NutritionHunger int `json:"nutrition_hunger,omitempty"`
}

func (d ResourceDef) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasAllTags is the capability check used by tag-based reservation matching:
// required ⊆ item tags.
func (d ResourceDef) HasAllTags(required []string) bool {
	for _, t := range required {
		if !d.HasTag(t) {
			return false
		}
	}
	return true
}

type RecipeCatalog struct {
	ByID   map[string]RecipeDef
	Digest string
}

type RecipeDef struct {
	RecipeID  string       `json:"recipe_id"`
	Station   string       `json:"station"` // tile id the crafter must stand at
	Inputs    []Ingredient `json:"inputs"`
	Outputs   []ItemCount  `json:"outputs"`
	WorkTicks int          `json:"work_ticks"`
}

// Ingredient names either an exact resource or a tag expression; exactly one
// of Resource/Tags must be set.
type Ingredient struct {
	Resource string   `json:"resource,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Count    int      `json:"count"`
}

func (in Ingredient) Valid() bool {
	if in.Count <= 0 {
		return false
	}
	return (in.Resource != "") != (len(in.Tags) > 0)
}

type ItemCount struct {
	Resource string `json:"resource"`
	Count    int    `json:"count"`
}

type NodeCatalog struct {
	Defs   map[string]NodeDef
	Digest string
}

// NodeDef describes a harvestable world feature (wood pile, scrap heap,
// cracked street). Replenishable nodes regrow after RegrowTicks.
type NodeDef struct {
	ID            string `json:"id"`
	Resource      string `json:"resource"`
	YieldPerCycle int    `json:"yield_per_cycle"`
	Cycles        int    `json:"cycles"` // total harvest cycles before depletion
	WorkTicks     int    `json:"work_ticks"`
	Replenishable bool   `json:"replenishable,omitempty"`
	RegrowTicks   uint64 `json:"regrow_ticks,omitempty"`
	DepletedTile  string `json:"depleted_tile"`
}

type BlueprintCatalog struct {
	ByID   map[string]BlueprintDef
	Digest string
}

type BlueprintDef struct {
	ID           string      `json:"id"`
	Cost         []ItemCount `json:"cost"`
	WorkTicks    int         `json:"work_ticks"`
	FinishedTile string      `json:"finished_tile"`
	Walkable     bool        `json:"walkable,omitempty"`
}

type AnimalCatalog struct {
	Defs   map[string]AnimalDef
	Digest string
}

type AnimalDef struct {
	ID             string `json:"id"`
	HP             int    `json:"hp"`
	FleeBelowHP    int    `json:"flee_below_hp,omitempty"`
	AttackDamage   int    `json:"attack_damage"`
	CorpseResource string `json:"corpse_resource"`
	CorpseAmount   int    `json:"corpse_amount"`
}

type SalvageCatalog struct {
	Defs   map[string]SalvageDef
	Digest string
}

type SalvageDef struct {
	ID        string      `json:"id"`
	WorkTicks int         `json:"work_ticks"`
	Outputs   []ItemCount `json:"outputs"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadResources(filepath.Join(configDir, "resources.json"), &c.Resources); err != nil {
		return nil, err
	}
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), &c.Recipes, &c); err != nil {
		return nil, err
	}
	if err := loadNodes(filepath.Join(configDir, "nodes.json"), &c.Nodes, &c); err != nil {
		return nil, err
	}
	if err := loadBlueprints(filepath.Join(configDir, "blueprints.json"), &c.Blueprints, &c); err != nil {
		return nil, err
	}
	if err := loadAnimals(filepath.Join(configDir, "animals.json"), &c.Animals, &c); err != nil {
		return nil, err
	}
	if err := loadSalvage(filepath.Join(configDir, "salvage.json"), &c.Salvage, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func readValidated(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(path, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func loadResources(path string, out *ResourceCatalog) error {
	raw, err := readValidated(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ResourceDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("resources.json: %w", err)
	}
	out.Defs = map[string]ResourceDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("resources.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("resources.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}
	return nil
}

func loadRecipes(path string, out *RecipeCatalog, c *Catalogs) error {
	raw, err := readValidated(path)
	if err != nil {
		if os.IsNotExist(err) {
			out.ByID = map[string]RecipeDef{}
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	out.ByID = map[string]RecipeDef{}
	for _, r := range defs {
		if r.RecipeID == "" {
			return fmt.Errorf("recipes.json: empty recipe_id")
		}
		if r.WorkTicks <= 0 {
			return fmt.Errorf("recipes.json: %s: work_ticks must be positive", r.RecipeID)
		}
		for _, in := range r.Inputs {
			if !in.Valid() {
				return fmt.Errorf("recipes.json: %s: ingredient needs exactly one of resource/tags and a positive count", r.RecipeID)
			}
			if in.Resource != "" {
				if _, ok := c.Resources.Defs[in.Resource]; !ok {
					return fmt.Errorf("recipes.json: %s: unknown input resource %s", r.RecipeID, in.Resource)
				}
			}
		}
		for _, outp := range r.Outputs {
			if _, ok := c.Resources.Defs[outp.Resource]; !ok {
				return fmt.Errorf("recipes.json: %s: unknown output resource %s", r.RecipeID, outp.Resource)
			}
		}
		out.ByID[r.RecipeID] = r
	}
	return nil
}

func loadNodes(path string, out *NodeCatalog, c *Catalogs) error {
	raw, err := readValidated(path)
	if err != nil {
		if os.IsNotExist(err) {
			out.Defs = map[string]NodeDef{}
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []NodeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("nodes.json: %w", err)
	}
	out.Defs = map[string]NodeDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("nodes.json: empty id")
		}
		if _, ok := c.Resources.Defs[d.Resource]; !ok {
			return fmt.Errorf("nodes.json: %s: unknown resource %s", d.ID, d.Resource)
		}
		out.Defs[d.ID] = d
	}
	return nil
}

func loadBlueprints(path string, out *BlueprintCatalog, c *Catalogs) error {
	raw, err := readValidated(path)
	if err != nil {
		if os.IsNotExist(err) {
			out.ByID = map[string]BlueprintDef{}
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []BlueprintDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blueprints.json: %w", err)
	}
	out.ByID = map[string]BlueprintDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blueprints.json: empty id")
		}
		for _, cost := range d.Cost {
			if _, ok := c.Resources.Defs[cost.Resource]; !ok {
				return fmt.Errorf("blueprints.json: %s: unknown cost resource %s", d.ID, cost.Resource)
			}
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadAnimals(path string, out *AnimalCatalog, c *Catalogs) error {
	raw, err := readValidated(path)
	if err != nil {
		if os.IsNotExist(err) {
			out.Defs = map[string]AnimalDef{}
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []AnimalDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("animals.json: %w", err)
	}
	out.Defs = map[string]AnimalDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("animals.json: empty id")
		}
		if _, ok := c.Resources.Defs[d.CorpseResource]; !ok {
			return fmt.Errorf("animals.json: %s: unknown corpse resource %s", d.ID, d.CorpseResource)
		}
		out.Defs[d.ID] = d
	}
	return nil
}

func loadSalvage(path string, out *SalvageCatalog, c *Catalogs) error {
	raw, err := readValidated(path)
	if err != nil {
		if os.IsNotExist(err) {
			out.Defs = map[string]SalvageDef{}
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []SalvageDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("salvage.json: %w", err)
	}
	out.Defs = map[string]SalvageDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("salvage.json: empty id")
		}
		for _, outp := range d.Outputs {
			if _, ok := c.Resources.Defs[outp.Resource]; !ok {
				return fmt.Errorf("salvage.json: %s: unknown output resource %s", d.ID, outp.Resource)
			}
		}
		out.Defs[d.ID] = d
	}
	return nil
}
