package catalogs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configDir = "../../../configs"

func TestLoadRepoConfigs(t *testing.T) {
	c, err := Load(configDir)
	require.NoError(t, err)

	bank, ok := c.Nodes.ByID["bank_lumbridge"]
	require.True(t, ok)
	assert.Equal(t, NodeBank, bank.Type)

	a, ok := c.Activity("bait_fish")
	require.True(t, ok)
	assert.Equal(t, "raw_sardine", a.PrimaryItem())
	assert.Equal(t, "fishing_bait", a.Consumes[0].Item)

	r, ok := c.Recipe("bronze_bar")
	require.True(t, ok)
	assert.Len(t, r.Inputs, 2)

	assert.NotEmpty(t, c.Items.Digest)
	assert.NotEmpty(t, c.Terrain.Digest)
}

func TestConfigsMatchSchemas(t *testing.T) {
	pairs := map[string]string{
		"items.json":      "items.schema.json",
		"nodes.json":      "nodes.schema.json",
		"activities.json": "activities.schema.json",
		"recipes.json":    "recipes.schema.json",
		"routes.json":     "routes.schema.json",
		"terrain.json":    "terrain.schema.json",
	}
	for data, schema := range pairs {
		t.Run(data, func(t *testing.T) {
			s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", schema))
			require.NoError(t, err)

			raw, err := os.ReadFile(filepath.Join(configDir, data))
			require.NoError(t, err)
			var v any
			require.NoError(t, json.Unmarshal(raw, &v))
			require.NoError(t, s.Validate(v))
		})
	}
}

func TestValidateRejectsDanglingActivity(t *testing.T) {
	c, err := Load(configDir)
	require.NoError(t, err)

	n := c.Nodes.ByID["trees_lumbridge"]
	n.Activities = append(n.Activities, "chop_magic")
	c.Nodes.ByID[n.ID] = n

	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chop_magic")
}

func TestLoadNodesRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","type":"castle","pos":{"x":1,"y":1}}]`), 0o644))

	var out NodeCatalog
	err := loadNodes(path, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "castle")
}

func TestPrimaryItemPrefersTaskItem(t *testing.T) {
	a := ActivityDef{TaskItem: "oak_logs", Rewards: []RewardDef{{Item: "logs", Min: 1}}}
	assert.Equal(t, "oak_logs", a.PrimaryItem())
	assert.Equal(t, "", ActivityDef{}.PrimaryItem())
}
