package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HashemBader/lccn-harvester/internal/testutil"
)

func TestLoadConfigsJSON(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.WriteFile("targets.json", []byte(`[
		{"name":"loc","type":"loc","rank":1,"selected":true},
		{"name":"yale","type":"z3950","host":"z3950.library.yale.edu","port":7090,"database":"voyager","rank":2,"selected":false}
	]`))

	cfgs, err := LoadConfigs(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "loc", cfgs[0].Name)
	assert.Equal(t, "z3950.library.yale.edu", cfgs[1].Host)
	assert.Equal(t, 7090, cfgs[1].Port)
	assert.False(t, cfgs[1].Selected)
}

func TestLoadConfigsYAML(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.WriteFile("targets.yaml", []byte(`
- name: harvard
  type: harvard
  rank: 1
  selected: true
- name: nlm
  type: z3950
  host: z3950.nlm.nih.gov
  port: 7090
  database: catalog
  max_retries: 4
  rank: 2
  selected: true
`))

	cfgs, err := LoadConfigs(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "harvard", cfgs[0].Name)
	assert.Equal(t, 4, cfgs[1].MaxRetries)
}

func TestLoadConfigsMissingFile(t *testing.T) {
	_, err := LoadConfigs("/nonexistent/targets.json")
	assert.Error(t, err)
}

func TestBuildOrdersByRank(t *testing.T) {
	entries, err := Build([]Config{
		{Name: "openlibrary", Type: TypeOpenLibrary, Rank: 3, Selected: true},
		{Name: "loc", Type: TypeLoC, Rank: 1, Selected: true},
		{Name: "harvard", Type: TypeHarvard, Rank: 2, Selected: true},
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var names []string
	for _, e := range entries {
		names = append(names, e.Target.Name())
	}
	assert.Equal(t, []string{"loc", "harvard", "openlibrary"}, names)
}

func TestBuildSkipsUnselectedAndUnknown(t *testing.T) {
	entries, err := Build([]Config{
		{Name: "loc", Type: TypeLoC, Rank: 1, Selected: true},
		{Name: "harvard", Type: TypeHarvard, Rank: 2, Selected: false},
		{Name: "mystery", Type: "gopher", Rank: 3, Selected: true},
		{Name: "broken", Type: TypeZ3950, Rank: 4, Selected: true}, // missing address
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "loc", entries[0].Target.Name())
}

func TestBuildNoUsableTargets(t *testing.T) {
	_, err := Build([]Config{
		{Name: "loc", Type: TypeLoC, Rank: 1, Selected: false},
	})
	assert.Error(t, err)
}

func TestBuildRetryPolicy(t *testing.T) {
	entries, err := Build([]Config{
		{Name: "loc", Type: TypeLoC, Rank: 1, Selected: true, MaxRetries: 5},
		{Name: "harvard", Type: TypeHarvard, Rank: 2, Selected: true},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 5, entries[0].Retry.MaxRetries)
	assert.Equal(t, defaultMaxRetries, entries[1].Retry.MaxRetries)
}

func TestDefaultConfigs(t *testing.T) {
	entries, err := Build(DefaultConfigs())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "loc", entries[0].Target.Name())
}

func TestBuildZ3950(t *testing.T) {
	entries, err := Build([]Config{{
		Name: "yale", Type: TypeZ3950,
		Host: "z3950.library.yale.edu", Port: 7090, Database: "voyager",
		Timeout: 20, Rank: 1, Selected: true,
	}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "yale", entries[0].Target.Name())
}
