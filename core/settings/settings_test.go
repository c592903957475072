package settings

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Settings {
	return Settings{
		Provider:     "anthropic",
		Model:        "claude-haiku-4-5",
		Language:     "Italian",
		SystemPrompt: "Be concise.",
		APIKeys:      map[string]string{"anthropic": "sk-ant", "openrouter": "sk-or"},
	}
}

func TestSettings_JSONFlattensAPIKeys(t *testing.T) {
	data, err := json.Marshal(sample())
	require.NoError(t, err)

	var wire map[string]string
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "anthropic", wire["provider"])
	assert.Equal(t, "Be concise.", wire["systemPrompt"])
	assert.Equal(t, "sk-ant", wire["anthropicApiKey"])
	assert.Equal(t, "sk-or", wire["openrouterApiKey"])

	var decoded Settings
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sample(), decoded)
}

func TestSettings_UnmarshalDefaultsAndValidation(t *testing.T) {
	var decoded Settings
	require.NoError(t, json.Unmarshal([]byte(`{"language":"German","geminiApiKey":"g","ApiKey":"ignored","extra":"x","openaiApiKey":""}`), &decoded))

	assert.Equal(t, DefaultProvider, decoded.Provider)
	assert.Equal(t, DefaultModel, decoded.Model)
	assert.Equal(t, "German", decoded.Language)
	assert.Equal(t, map[string]string{"gemini": "g"}, decoded.APIKeys)

	assert.Error(t, json.Unmarshal([]byte(`{"provider":42}`), &decoded))
}

func TestSettings_CloneIsIndependent(t *testing.T) {
	original := sample()
	snapshot := original.Clone()

	original.APIKeys["anthropic"] = "rotated"
	original.Model = "other"

	assert.Equal(t, "sk-ant", snapshot.APIKey("anthropic"))
	assert.Equal(t, "claude-haiku-4-5", snapshot.Model)
}

func TestMemoryStore_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	var store MemoryStore

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)

	input := sample()
	require.NoError(t, store.Save(ctx, input))
	input.APIKeys["anthropic"] = "mutated after save"

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", loaded.APIKey("anthropic"))

	loaded.APIKeys["openrouter"] = "mutated after load"
	again, _ := store.Load(ctx)
	assert.Equal(t, "sk-or", again.APIKey("openrouter"))
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "settings.db"))
	require.NoError(t, err)
	defer store.Close()

	fresh, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Default(), fresh)

	require.NoError(t, store.Save(ctx, sample()))
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample(), loaded)

	updated := sample()
	delete(updated.APIKeys, "openrouter")
	updated.Language = "Hebrew"
	require.NoError(t, store.Save(ctx, updated))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hebrew", loaded.Language)
	assert.Equal(t, map[string]string{"anthropic": "sk-ant"}, loaded.APIKeys)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), sample()))
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anthropic", loaded.Provider)
}
