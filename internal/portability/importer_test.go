package portability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/mocks"
	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exportFixture exports the fixture screen and passes the payload through
// the JSON codec, like a file downloaded and uploaded again.
func exportFixture(t *testing.T, f *fixture) *portability.Payload {
	t.Helper()
	exp := portability.NewExporter(f.repo, testLogger())
	require.NoError(t, exp.ExportScreen(context.Background(), f.screen))

	var buf bytes.Buffer
	require.NoError(t, portability.EncodePayload(&buf, exp.Payload()))
	p, err := portability.DecodePayload(&buf)
	require.NoError(t, err)
	return p
}

func doImport(t *testing.T, repo *mocks.MemoryRepository, p *portability.Payload, opts *portability.Options) (*portability.Result, error) {
	t.Helper()
	return portability.NewImporter(repo, p, opts, testLogger()).DoImport(context.Background())
}

type storeCounts struct {
	screens, screenCategories, scripts, scriptCategories int
}

func countAll(t *testing.T, repo *mocks.MemoryRepository) storeCounts {
	t.Helper()
	ctx := context.Background()
	var c storeCounts
	var err error
	c.screens, err = repo.Screens().Count(ctx)
	require.NoError(t, err)
	c.screenCategories, err = repo.ScreenCategories().Count(ctx)
	require.NoError(t, err)
	c.scripts, err = repo.Scripts().Count(ctx)
	require.NoError(t, err)
	c.scriptCategories, err = repo.ScriptCategories().Count(ctx)
	require.NoError(t, err)
	return c
}

func screenCategoryNode(id uuid.UUID, name string) portability.PayloadNode {
	return portability.PayloadNode{
		UUID:       id,
		Type:       portability.KindScreenCategory,
		Name:       name,
		Attributes: map[string]any{"name": name, "status": "ACTIVE"},
	}
}

func scriptCategoryNode(id uuid.UUID, name string) portability.PayloadNode {
	n := screenCategoryNode(id, name)
	n.Type = portability.KindScriptCategory
	return n
}

func scriptNode(id uuid.UUID, title string, category uuid.UUID) portability.PayloadNode {
	return portability.PayloadNode{
		UUID: id,
		Type: portability.KindScript,
		Name: title,
		Attributes: map[string]any{
			"title":           title,
			"language":        "javascript",
			"code":            "return {};",
			"timeout":         30,
			"script_category": category.String(),
		},
		Dependents: []portability.Ref{{UUID: category, Type: portability.KindScriptCategory}},
	}
}

func screenNode(id uuid.UUID, title string, categories ...uuid.UUID) portability.PayloadNode {
	refs := make([]any, 0, len(categories))
	for _, c := range categories {
		refs = append(refs, c.String())
	}
	return portability.PayloadNode{
		UUID: id,
		Type: portability.KindScreen,
		Name: title,
		Attributes: map[string]any{
			"title":             title,
			"type":              "FORM",
			"config":            []any{},
			"computed":          []any{},
			"watchers":          []any{},
			"screen_categories": refs,
		},
	}
}

func newPayload(roots []uuid.UUID, nodes ...portability.PayloadNode) *portability.Payload {
	return &portability.Payload{
		Type:    portability.PayloadType,
		Version: portability.PayloadVersion,
		Root:    roots,
		Nodes:   nodes,
	}
}

func TestImporter_IntoEmptyStore(t *testing.T) {
	f := newFixture(t)
	p := exportFixture(t, f)
	target := mocks.NewMemoryRepository()

	result, err := doImport(t, target, p, nil)
	require.NoError(t, err)

	assert.Equal(t, storeCounts{screens: 2, screenCategories: 2, scripts: 1, scriptCategories: 1}, countAll(t, target))
	assert.Equal(t, portability.KindCounts{Created: 2}, result.Counts[portability.KindScreen])
	assert.Equal(t, portability.KindCounts{Created: 2}, result.Counts[portability.KindScreenCategory])
	assert.Equal(t, portability.KindCounts{Created: 1}, result.Counts[portability.KindScript])
	assert.Equal(t, portability.KindCounts{Created: 1}, result.Counts[portability.KindScriptCategory])
	assert.Empty(t, result.Errors)

	// dependents are written before the nodes that reference them
	written := make([]uuid.UUID, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		written = append(written, n.UUID)
	}
	assert.Equal(t, []uuid.UUID{
		f.cat1.UUID, f.cat2.UUID, f.scriptCat.UUID, f.script.UUID, f.nested.UUID, f.screen.UUID,
	}, written)

	ctx := context.Background()
	cat1, err := target.ScreenCategories().GetByUUID(ctx, f.cat1.UUID)
	require.NoError(t, err)
	cat2, err := target.ScreenCategories().GetByUUID(ctx, f.cat2.UUID)
	require.NoError(t, err)
	scriptCat, err := target.ScriptCategories().GetByUUID(ctx, f.scriptCat.UUID)
	require.NoError(t, err)
	script, err := target.Scripts().GetByUUID(ctx, f.script.UUID)
	require.NoError(t, err)
	nested, err := target.Screens().GetByUUID(ctx, f.nested.UUID)
	require.NoError(t, err)
	screen, err := target.Screens().GetByUUID(ctx, f.screen.UUID)
	require.NoError(t, err)

	assert.Equal(t, "category 1", cat1.Name)
	assert.Equal(t, "Lookup customer", script.Title)
	assert.Equal(t, 60, script.Timeout)
	require.NotNil(t, script.CategoryID)
	assert.Equal(t, scriptCat.ID, *script.CategoryID)

	assert.Equal(t, "screen 1", screen.Title)
	assert.Equal(t, []int64{cat1.ID, cat2.ID}, screen.CategoryIDs)
	assert.Equal(t, []int64{cat1.ID}, nested.CategoryIDs)
	assert.JSONEq(t, `{}`, string(screen.Translations))

	scriptRef, ok := domain.AsInt64(watcherRef(t, screen.Watchers))
	require.True(t, ok)
	assert.Equal(t, script.ID, scriptRef)

	nestedID, ok := domain.AsInt64(nestedRef(t, screen.Config))
	require.True(t, ok)
	assert.Equal(t, nested.ID, nestedID)

	ids, err := screen.NestedScreenIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{nested.ID}, ids)
}

func TestImporter_Idempotent(t *testing.T) {
	f := newFixture(t)
	p := exportFixture(t, f)
	target := mocks.NewMemoryRepository()

	_, err := doImport(t, target, p, nil)
	require.NoError(t, err)
	first := countAll(t, target)

	result, err := doImport(t, target, p, nil)
	require.NoError(t, err)

	assert.Equal(t, first, countAll(t, target))
	assert.Equal(t, portability.KindCounts{Updated: 2}, result.Counts[portability.KindScreen])
	assert.Equal(t, portability.KindCounts{Updated: 2}, result.Counts[portability.KindScreenCategory])
	assert.Equal(t, portability.KindCounts{Updated: 1}, result.Counts[portability.KindScript])
	assert.Equal(t, portability.KindCounts{Updated: 1}, result.Counts[portability.KindScriptCategory])
}

func TestImporter_RestoresDeletedAndChangedEntities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := exportFixture(t, f)

	require.NoError(t, f.repo.Screens().Delete(ctx, f.screen.ID))
	f.cat1.Name = "changed"
	require.NoError(t, f.repo.ScreenCategories().Update(ctx, f.cat1))
	require.NoError(t, f.repo.ScreenCategories().Delete(ctx, f.cat2.ID))

	result, err := doImport(t, f.repo, p, nil)
	require.NoError(t, err)

	screen, err := f.repo.Screens().GetByUUID(ctx, f.screen.UUID)
	require.NoError(t, err)
	assert.Equal(t, "screen 1", screen.Title)

	cat1, err := f.repo.ScreenCategories().GetByID(ctx, f.cat1.ID)
	require.NoError(t, err)
	assert.Equal(t, "category 1", cat1.Name)

	cat2, err := f.repo.ScreenCategories().GetByUUID(ctx, f.cat2.UUID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.cat1.ID, cat2.ID}, screen.CategoryIDs)

	assert.Equal(t, storeCounts{screens: 2, screenCategories: 2, scripts: 1, scriptCategories: 1}, countAll(t, f.repo))

	outcome, _ := result.Outcome(f.screen.UUID)
	assert.Equal(t, portability.OutcomeCreated, outcome)
	outcome, _ = result.Outcome(f.cat1.UUID)
	assert.Equal(t, portability.OutcomeUpdated, outcome)
	outcome, _ = result.Outcome(f.cat2.UUID)
	assert.Equal(t, portability.OutcomeCreated, outcome)
	outcome, _ = result.Outcome(f.nested.UUID)
	assert.Equal(t, portability.OutcomeUpdated, outcome)
}

func TestImporter_UpdateKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := exportFixture(t, f)

	stored, err := f.repo.Screens().GetByID(ctx, f.screen.ID)
	require.NoError(t, err)
	require.NoError(t, stored.SetTranslations("es", map[string]string{"Name": "Nombre"}))
	stored.Title = "edited locally"
	require.NoError(t, f.repo.Screens().Update(ctx, stored))

	_, err = doImport(t, f.repo, p, nil)
	require.NoError(t, err)

	screen, err := f.repo.Screens().GetByUUID(ctx, f.screen.UUID)
	require.NoError(t, err)
	assert.Equal(t, f.screen.ID, screen.ID)
	assert.Equal(t, "screen 1", screen.Title)
	es, err := screen.TranslationsFor("es")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Name": "Nombre"}, es)
}

func TestImporter_SkipMode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := exportFixture(t, f)

	f.cat1.Name = "renamed"
	require.NoError(t, f.repo.ScreenCategories().Update(ctx, f.cat1))
	require.NoError(t, f.repo.ScreenCategories().Delete(ctx, f.cat2.ID))

	opts, err := portability.NewOptions(map[string]any{"mode": "skip"})
	require.NoError(t, err)
	result, err := doImport(t, f.repo, p, opts)
	require.NoError(t, err)

	cat1, err := f.repo.ScreenCategories().GetByID(ctx, f.cat1.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", cat1.Name)

	assert.Equal(t, portability.KindCounts{Created: 1, Skipped: 1}, result.Counts[portability.KindScreenCategory])
	assert.Equal(t, portability.KindCounts{Skipped: 2}, result.Counts[portability.KindScreen])
	outcome, ok := result.Outcome(f.cat2.UUID)
	require.True(t, ok)
	assert.Equal(t, portability.OutcomeCreated, outcome)
}

func TestImporter_PerNodeMode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := exportFixture(t, f)

	f.cat1.Name = "renamed 1"
	require.NoError(t, f.repo.ScreenCategories().Update(ctx, f.cat1))
	f.cat2.Name = "renamed 2"
	require.NoError(t, f.repo.ScreenCategories().Update(ctx, f.cat2))

	opts, err := portability.NewOptions(map[string]any{
		"skip_if_exists": true,
		"modes":          map[string]any{f.cat1.UUID.String(): "update"},
	})
	require.NoError(t, err)
	_, err = doImport(t, f.repo, p, opts)
	require.NoError(t, err)

	cat1, err := f.repo.ScreenCategories().GetByID(ctx, f.cat1.ID)
	require.NoError(t, err)
	assert.Equal(t, "category 1", cat1.Name)
	cat2, err := f.repo.ScreenCategories().GetByID(ctx, f.cat2.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed 2", cat2.Name)
}

func TestImporter_Cycle(t *testing.T) {
	source := mocks.NewMemoryRepository()
	a, b := cyclicScreens(t, source)
	exp := portability.NewExporter(source, testLogger())
	require.NoError(t, exp.ExportScreen(context.Background(), a))

	target := mocks.NewMemoryRepository()
	result, err := doImport(t, target, exp.Payload(), nil)
	require.NoError(t, err)
	assert.Equal(t, portability.KindCounts{Created: 2}, result.Counts[portability.KindScreen])

	ctx := context.Background()
	newA, err := target.Screens().GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	newB, err := target.Screens().GetByUUID(ctx, b.UUID)
	require.NoError(t, err)

	ref, ok := domain.AsInt64(nestedRef(t, newA.Config))
	require.True(t, ok)
	assert.Equal(t, newB.ID, ref)
	ref, ok = domain.AsInt64(nestedRef(t, newB.Config))
	require.True(t, ok)
	assert.Equal(t, newA.ID, ref)
}

func TestImporter_SinglePageConfig(t *testing.T) {
	ctx := context.Background()
	source := mocks.NewMemoryRepository()
	child, err := domain.NewScreen("address", domain.ScreenTypeForm)
	require.NoError(t, err)
	require.NoError(t, source.Screens().Create(ctx, child))

	parent, err := domain.NewScreen("customer", domain.ScreenTypeForm)
	require.NoError(t, err)
	parent.Config = json.RawMessage(fmt.Sprintf(
		`{"items":[{"component":"FormNestedScreen","config":{"screen":%d}}]}`, child.ID))
	require.NoError(t, source.Screens().Create(ctx, parent))

	exp := portability.NewExporter(source, testLogger())
	require.NoError(t, exp.ExportScreen(ctx, parent))

	target := mocks.NewMemoryRepository()
	result, err := doImport(t, target, exp.Payload(), nil)
	require.NoError(t, err)
	assert.Equal(t, portability.KindCounts{Created: 2}, result.Counts[portability.KindScreen])

	newParent, err := target.Screens().GetByUUID(ctx, parent.UUID)
	require.NoError(t, err)
	newChild, err := target.Screens().GetByUUID(ctx, child.UUID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bytes.TrimSpace(newParent.Config), []byte("{")))
	ref, ok := domain.AsInt64(nestedRef(t, newParent.Config))
	require.True(t, ok)
	assert.Equal(t, newChild.ID, ref)
}

func TestImporter_ResolvesReferencesFromStore(t *testing.T) {
	repo := mocks.NewMemoryRepository()
	existing := createScreenCategory(t, repo, "already here")

	id := uuid.New()
	p := newPayload([]uuid.UUID{id}, screenNode(id, "uses stored category", existing.UUID))

	_, err := doImport(t, repo, p, nil)
	require.NoError(t, err)

	screen, err := repo.Screens().GetByUUID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []int64{existing.ID}, screen.CategoryIDs)
}

func TestImporter_ReferenceIntegrity(t *testing.T) {
	catID, screenID, missing := uuid.New(), uuid.New(), uuid.New()

	t.Run("dependent missing from payload", func(t *testing.T) {
		node := screenNode(screenID, "screen")
		node.Dependents = []portability.Ref{{UUID: missing, Type: portability.KindScreenCategory}}
		repo := mocks.NewMemoryRepository()

		_, err := doImport(t, repo, newPayload([]uuid.UUID{screenID}, node), nil)

		var refErr *portability.ReferenceIntegrityError
		require.True(t, errors.As(err, &refErr))
		assert.Equal(t, missing, refErr.StableID)
		assert.Equal(t, screenID, refErr.ReferencedBy)
	})

	t.Run("dependent of the wrong type", func(t *testing.T) {
		node := screenNode(screenID, "screen")
		node.Dependents = []portability.Ref{{UUID: catID, Type: portability.KindScriptCategory}}
		p := newPayload([]uuid.UUID{screenID}, node, screenCategoryNode(catID, "cat"))

		_, err := doImport(t, mocks.NewMemoryRepository(), p, nil)
		assert.ErrorIs(t, err, portability.ErrReferenceIntegrity)
	})

	t.Run("root missing from payload", func(t *testing.T) {
		p := newPayload([]uuid.UUID{missing}, screenCategoryNode(catID, "cat"))

		_, err := doImport(t, mocks.NewMemoryRepository(), p, nil)
		assert.ErrorIs(t, err, portability.ErrReferenceIntegrity)
	})

	t.Run("attribute reference nowhere to be found rolls back", func(t *testing.T) {
		node := screenNode(screenID, "screen", catID, missing)
		node.Dependents = []portability.Ref{{UUID: catID, Type: portability.KindScreenCategory}}
		repo := mocks.NewMemoryRepository()

		_, err := doImport(t, repo, newPayload([]uuid.UUID{screenID}, node, screenCategoryNode(catID, "cat")), nil)

		var refErr *portability.ReferenceIntegrityError
		require.True(t, errors.As(err, &refErr))
		assert.Equal(t, missing, refErr.StableID)
		assert.Equal(t, portability.KindScreenCategory, refErr.Kind)
		assert.Equal(t, storeCounts{}, countAll(t, repo), "category written before the failure is rolled back")
	})
}

func TestImporter_AcceptsUppercaseReferences(t *testing.T) {
	screenCat, scriptCat := uuid.New(), uuid.New()
	screenID, scriptID := uuid.New(), uuid.New()

	screen := screenNode(screenID, "Intake", screenCat)
	screen.Attributes["screen_categories"] = []any{strings.ToUpper(screenCat.String())}
	script := scriptNode(scriptID, "Lookup", scriptCat)
	script.Attributes["script_category"] = strings.ToUpper(scriptCat.String())

	var buf bytes.Buffer
	require.NoError(t, portability.EncodePayload(&buf, newPayload([]uuid.UUID{screenID},
		screen, screenCategoryNode(screenCat, "Forms"), script, scriptCategoryNode(scriptCat, "Tools"))))
	p, err := portability.DecodePayload(&buf)
	require.NoError(t, err)

	repo := mocks.NewMemoryRepository()
	result, err := doImport(t, repo, p, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, storeCounts{screens: 1, screenCategories: 1, scripts: 1, scriptCategories: 1}, countAll(t, repo))

	imported, err := repo.Screens().GetByUUID(context.Background(), screenID)
	require.NoError(t, err)
	category, err := repo.ScreenCategories().GetByUUID(context.Background(), screenCat)
	require.NoError(t, err)
	assert.Equal(t, []int64{category.ID}, imported.CategoryIDs)
}

func TestImporter_DuplicateStableID(t *testing.T) {
	id := uuid.New()
	repo := mocks.NewMemoryRepository()
	p := newPayload(nil, screenCategoryNode(id, "one"), scriptCategoryNode(id, "two"))

	_, err := doImport(t, repo, p, nil)

	var dupErr *portability.DuplicateStableIDError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, id, dupErr.StableID)
	assert.Equal(t, storeCounts{}, countAll(t, repo))
}

func TestImporter_RejectsMalformedPayload(t *testing.T) {
	_, err := doImport(t, mocks.NewMemoryRepository(), nil, nil)
	assert.ErrorIs(t, err, portability.ErrInvalidPayload)

	node := screenCategoryNode(uuid.New(), "cat")
	node.Type = portability.Kind("process")
	_, err = doImport(t, mocks.NewMemoryRepository(), newPayload(nil, node), nil)
	assert.ErrorIs(t, err, portability.ErrUnsupportedKind)
}

func TestImporter_ValidationPolicy(t *testing.T) {
	validID, invalidID := uuid.New(), uuid.New()
	payload := func() *portability.Payload {
		return newPayload(nil, screenCategoryNode(validID, "fine"), scriptCategoryNode(invalidID, ""))
	}

	t.Run("abort", func(t *testing.T) {
		repo := mocks.NewMemoryRepository()

		_, err := doImport(t, repo, payload(), nil)

		require.ErrorIs(t, err, portability.ErrInvalidNode)
		var verr *portability.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, invalidID, verr.StableID)
		assert.Equal(t, "name", verr.Field)
		assert.Equal(t, storeCounts{}, countAll(t, repo))
	})

	t.Run("skip", func(t *testing.T) {
		repo := mocks.NewMemoryRepository()
		opts, err := portability.NewOptions(map[string]any{"on_validation_error": "skip"})
		require.NoError(t, err)

		result, err := doImport(t, repo, payload(), opts)
		require.NoError(t, err)

		assert.Equal(t, storeCounts{screenCategories: 1}, countAll(t, repo))
		require.Len(t, result.Errors, 1)
		assert.Equal(t, invalidID, result.Errors[0].StableID)
		assert.Equal(t, portability.KindCounts{Invalid: 1}, result.Counts[portability.KindScriptCategory])
		outcome, _ := result.Outcome(invalidID)
		assert.Equal(t, portability.OutcomeInvalid, outcome)
	})

	t.Run("skip with a dependent of the invalid node", func(t *testing.T) {
		repo := mocks.NewMemoryRepository()
		opts, err := portability.NewOptions(map[string]any{"on_validation_error": "skip"})
		require.NoError(t, err)
		scriptID := uuid.New()
		p := newPayload([]uuid.UUID{scriptID},
			scriptNode(scriptID, "needs category", invalidID),
			scriptCategoryNode(invalidID, ""))

		_, err = doImport(t, repo, p, opts)

		var refErr *portability.ReferenceIntegrityError
		require.True(t, errors.As(err, &refErr))
		assert.Equal(t, invalidID, refErr.StableID)
		assert.Equal(t, scriptID, refErr.ReferencedBy)
		assert.Equal(t, storeCounts{}, countAll(t, repo))
	})

	t.Run("domain rules", func(t *testing.T) {
		id := uuid.New()
		node := screenNode(id, "bad config")
		node.Attributes["config"] = map[string]any{"not": "an array"}

		_, err := doImport(t, mocks.NewMemoryRepository(), newPayload(nil, node), nil)

		var verr *portability.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "config", verr.Field)
		assert.ErrorIs(t, err, domain.ErrInvalidScreenConfig)
	})
}

func TestImporter_DoesNotMutatePayload(t *testing.T) {
	f := newFixture(t)
	p := exportFixture(t, f)

	_, err := doImport(t, mocks.NewMemoryRepository(), p, nil)
	require.NoError(t, err)

	// a second, independent import still sees stable ids
	target := mocks.NewMemoryRepository()
	_, err = doImport(t, target, p, nil)
	require.NoError(t, err)
	screen, err := target.Screens().GetByUUID(context.Background(), f.screen.UUID)
	require.NoError(t, err)
	nested, err := target.Screens().GetByUUID(context.Background(), f.nested.UUID)
	require.NoError(t, err)
	ref, ok := domain.AsInt64(nestedRef(t, screen.Config))
	require.True(t, ok)
	assert.Equal(t, nested.ID, ref)
}
