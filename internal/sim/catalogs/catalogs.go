package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"idlecraft.ai/internal/sim/geom"
)

type Catalogs struct {
	Items      ItemCatalog
	Nodes      NodeCatalog
	Activities ActivityCatalog
	Recipes    RecipeCatalog
	Routes     RouteCatalog
	Terrain    TerrainDef
}

type ItemCatalog struct {
	ByID   map[string]ItemDef
	Digest string
}

type ItemDef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Stackable bool   `json:"stackable,omitempty"`
	// Buyable items can be bought from a shop; the agent never shops on its own.
	Buyable   bool `json:"buyable,omitempty"`
	ShopPrice int  `json:"shop_price,omitempty"`
}

type NodeType string

const (
	NodeBank       NodeType = "bank"
	NodeResource   NodeType = "resource"
	NodeProcessing NodeType = "processing"
	NodeQuest      NodeType = "quest"
)

type NodeCatalog struct {
	ByID   map[string]NodeDef
	Order  []string
	Digest string
}

type NodeDef struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Type       NodeType `json:"type"`
	Pos        geom.Vec `json:"pos"`
	Activities []string `json:"activities,omitempty"`
}

type ActivityCatalog struct {
	ByID   map[string]ActivityDef
	Digest string
}

type ActivityDef struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Skill      string      `json:"skill"`
	Level      int         `json:"level"`
	DurationMs int         `json:"duration_ms"`
	XP         float64     `json:"xp"`
	Rewards    []RewardDef `json:"rewards,omitempty"`
	// Requires must be held to start (tools); Consumes is removed on every completion (bait, logs).
	Requires []ItemCount `json:"requires,omitempty"`
	Consumes []ItemCount `json:"consumes,omitempty"`
	RecipeID string      `json:"recipe_id,omitempty"`
	TaskItem string      `json:"task_item,omitempty"`
}

// PrimaryItem is the item a task for this activity counts.
func (a ActivityDef) PrimaryItem() string {
	if a.TaskItem != "" {
		return a.TaskItem
	}
	if len(a.Rewards) > 0 {
		return a.Rewards[0].Item
	}
	return ""
}

type RewardDef struct {
	Item   string  `json:"item"`
	Min    int     `json:"min"`
	Max    int     `json:"max,omitempty"`
	Chance float64 `json:"chance,omitempty"` // 0 means always
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type RecipeCatalog struct {
	ByID   map[string]RecipeDef
	Digest string
}

type RecipeDef struct {
	ID      string      `json:"id"`
	Skill   string      `json:"skill"`
	Level   int         `json:"level"`
	Inputs  []ItemCount `json:"inputs"`
	Outputs []ItemCount `json:"outputs"`
	// FailItem replaces Outputs on a failed attempt (burnt food). FailChance applies at
	// Level and falls linearly to zero at SafeLevel.
	FailItem   string  `json:"fail_item,omitempty"`
	FailChance float64 `json:"fail_chance,omitempty"`
	SafeLevel  int     `json:"safe_level,omitempty"`
}

type RouteCatalog struct {
	Routes []RouteDef
	Digest string
}

type RouteDef struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	Waypoints []geom.Vec `json:"waypoints"`
}

type TerrainDef struct {
	Bounds  geom.Rect   `json:"bounds"`
	Water   []geom.Rect `json:"water,omitempty"`
	Blocked []geom.Rect `json:"blocked,omitempty"`
	Digest  string      `json:"-"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadNodes(filepath.Join(configDir, "nodes.json"), &c.Nodes); err != nil {
		return nil, err
	}
	if err := loadActivities(filepath.Join(configDir, "activities.json"), &c.Activities); err != nil {
		return nil, err
	}
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), &c.Recipes); err != nil {
		return nil, err
	}
	if err := loadRoutes(filepath.Join(configDir, "routes.json"), &c.Routes); err != nil {
		return nil, err
	}
	if err := loadTerrain(filepath.Join(configDir, "terrain.json"), &c.Terrain); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func readJSON(path string, out any) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return sha256Hex(raw), nil
}

func loadItems(path string, out *ItemCatalog) error {
	var defs []ItemDef
	digest, err := readJSON(path, &defs)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.ByID = make(map[string]ItemDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadNodes(path string, out *NodeCatalog) error {
	var defs []NodeDef
	digest, err := readJSON(path, &defs)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.ByID = make(map[string]NodeDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("nodes.json: empty id")
		}
		switch d.Type {
		case NodeBank, NodeResource, NodeProcessing, NodeQuest:
		default:
			return fmt.Errorf("nodes.json: node %s: unknown type %q", d.ID, d.Type)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("nodes.json: duplicate id %s", d.ID)
		}
		out.ByID[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

func loadActivities(path string, out *ActivityCatalog) error {
	var defs []ActivityDef
	digest, err := readJSON(path, &defs)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.ByID = make(map[string]ActivityDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("activities.json: empty id")
		}
		if d.Skill == "" {
			return fmt.Errorf("activities.json: activity %s: empty skill", d.ID)
		}
		if d.DurationMs <= 0 {
			return fmt.Errorf("activities.json: activity %s: duration_ms must be > 0", d.ID)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadRecipes(path string, out *RecipeCatalog) error {
	var defs []RecipeDef
	digest, err := readJSON(path, &defs)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.ByID = make(map[string]RecipeDef, len(defs))
	for _, r := range defs {
		if r.ID == "" {
			return fmt.Errorf("recipes.json: empty id")
		}
		if len(r.Inputs) == 0 {
			return fmt.Errorf("recipes.json: recipe %s: no inputs", r.ID)
		}
		out.ByID[r.ID] = r
	}
	return nil
}

func loadRoutes(path string, out *RouteCatalog) error {
	var defs []RouteDef
	digest, err := readJSON(path, &defs)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.Routes = defs
	return nil
}

func loadTerrain(path string, out *TerrainDef) error {
	digest, err := readJSON(path, out)
	if err != nil {
		return err
	}
	out.Digest = digest
	return nil
}

// Validate checks cross-file references.
func (c *Catalogs) Validate() error {
	for _, id := range c.Nodes.Order {
		n := c.Nodes.ByID[id]
		for _, aid := range n.Activities {
			if _, ok := c.Activities.ByID[aid]; !ok {
				return fmt.Errorf("nodes.json: node %s: unknown activity %s", n.ID, aid)
			}
		}
	}
	ids := make([]string, 0, len(c.Activities.ByID))
	for id := range c.Activities.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := c.Activities.ByID[id]
		if a.RecipeID != "" {
			if _, ok := c.Recipes.ByID[a.RecipeID]; !ok {
				return fmt.Errorf("activities.json: activity %s: unknown recipe %s", a.ID, a.RecipeID)
			}
		}
		for _, r := range a.Rewards {
			if _, ok := c.Items.ByID[r.Item]; !ok {
				return fmt.Errorf("activities.json: activity %s: unknown item %s", a.ID, r.Item)
			}
		}
		for _, r := range append(append([]ItemCount(nil), a.Requires...), a.Consumes...) {
			if _, ok := c.Items.ByID[r.Item]; !ok {
				return fmt.Errorf("activities.json: activity %s: unknown item %s", a.ID, r.Item)
			}
		}
	}
	for _, r := range c.Recipes.ByID {
		for _, ic := range append(append([]ItemCount(nil), r.Inputs...), r.Outputs...) {
			if _, ok := c.Items.ByID[ic.Item]; !ok {
				return fmt.Errorf("recipes.json: recipe %s: unknown item %s", r.ID, ic.Item)
			}
		}
	}
	for _, rt := range c.Routes.Routes {
		if _, ok := c.Nodes.ByID[rt.From]; !ok {
			return fmt.Errorf("routes.json: unknown node %s", rt.From)
		}
		if _, ok := c.Nodes.ByID[rt.To]; !ok {
			return fmt.Errorf("routes.json: unknown node %s", rt.To)
		}
	}
	return nil
}

func (c *Catalogs) Item(id string) (ItemDef, bool) {
	d, ok := c.Items.ByID[id]
	return d, ok
}

func (c *Catalogs) Activity(id string) (ActivityDef, bool) {
	d, ok := c.Activities.ByID[id]
	return d, ok
}

func (c *Catalogs) Recipe(id string) (RecipeDef, bool) {
	d, ok := c.Recipes.ByID[id]
	return d, ok
}

// Digests maps each loaded catalog file to its sha256.
func (c *Catalogs) Digests() map[string]string {
	out := map[string]string{}
	for name, d := range map[string]string{
		"items":      c.Items.Digest,
		"nodes":      c.Nodes.Digest,
		"activities": c.Activities.Digest,
		"recipes":    c.Recipes.Digest,
		"routes":     c.Routes.Digest,
		"terrain":    c.Terrain.Digest,
	} {
		if d != "" {
			out[name] = d
		}
	}
	return out
}
