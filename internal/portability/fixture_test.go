package portability_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/mocks"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture is a screen with two categories, a watcher script in its own
// category and a nested screen sharing the first category.
type fixture struct {
	repo      *mocks.MemoryRepository
	screen    *domain.Screen
	nested    *domain.Screen
	cat1      *domain.ScreenCategory
	cat2      *domain.ScreenCategory
	script    *domain.Script
	scriptCat *domain.ScriptCategory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{repo: mocks.NewMemoryRepository()}

	f.cat1 = createScreenCategory(t, f.repo, "category 1")
	f.cat2 = createScreenCategory(t, f.repo, "category 2")

	var err error
	f.scriptCat, err = domain.NewScriptCategory("watchers")
	require.NoError(t, err)
	require.NoError(t, f.repo.ScriptCategories().Create(ctx, f.scriptCat))

	f.script, err = domain.NewScript("Lookup customer", domain.ScriptLanguagePHP, "<?php return ['ok' => true];")
	require.NoError(t, err)
	f.script.CategoryID = &f.scriptCat.ID
	require.NoError(t, f.repo.Scripts().Create(ctx, f.script))

	f.nested, err = domain.NewScreen("Address block", domain.ScreenTypeForm)
	require.NoError(t, err)
	f.nested.CategoryIDs = []int64{f.cat1.ID}
	f.nested.Config = json.RawMessage(`[{"name":"page 1","items":[{"component":"FormInput","config":{"label":"Street"}}]}]`)
	require.NoError(t, f.repo.Screens().Create(ctx, f.nested))

	f.screen, err = domain.NewScreen("screen 1", domain.ScreenTypeForm)
	require.NoError(t, err)
	f.screen.CategoryIDs = []int64{f.cat1.ID, f.cat2.ID}
	f.screen.Watchers = json.RawMessage(fmt.Sprintf(
		`[{"name":"Lookup","watching":"customer","script_id":%d,"run_onload":false}]`, f.script.ID))
	f.screen.Config = nestingConfig(f.nested.ID)
	require.NoError(t, f.repo.Screens().Create(ctx, f.screen))

	return f
}

func createScreenCategory(t *testing.T, repo *mocks.MemoryRepository, name string) *domain.ScreenCategory {
	t.Helper()
	c, err := domain.NewScreenCategory(name)
	require.NoError(t, err)
	require.NoError(t, repo.ScreenCategories().Create(context.Background(), c))
	return c
}

// nestingConfig is a one page config embedding the screen with local id id.
func nestingConfig(id int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`[{"name":"page 1","items":[
		{"component":"FormInput","config":{"label":"Name","value":null}},
		{"component":"FormNestedScreen","config":{"label":"Nested","value":null,"screen":%d}}
	]}]`, id))
}

// nestedRef returns the screen reference of the first nested screen item in raw.
func nestedRef(t *testing.T, raw json.RawMessage) any {
	t.Helper()
	var config any
	require.NoError(t, json.Unmarshal(raw, &config))
	var ref any
	domain.WalkItems(config, func(item map[string]any) {
		if ref == nil && item["component"] == domain.NestedScreenComponent {
			ref = item["config"].(map[string]any)["screen"]
		}
	})
	return ref
}

// watcherRef returns the script_id of the first watcher in raw.
func watcherRef(t *testing.T, raw json.RawMessage) any {
	t.Helper()
	var watchers []map[string]any
	require.NoError(t, json.Unmarshal(raw, &watchers))
	require.NotEmpty(t, watchers)
	return watchers[0]["script_id"]
}
