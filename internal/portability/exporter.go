package portability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/store"
)

type entityKey struct {
	kind Kind
	id   int64
}

// Exporter accumulates export trees rooted at the entities passed to
// ExportScreen and ExportEntity.
//
// Dependents are discovered depth-first in a fixed order. For a screen:
// its categories in CategoryIDs order, then the scripts of its watchers in
// watcher order, then the screens nested in its config in document order.
// For a script: its category. Each entity is read and walked once; later
// references attach the existing node.
//
// An Exporter is not safe for concurrent use.
type Exporter struct {
	repo   store.Repository
	logger *slog.Logger
	now    func() time.Time

	roots   []*ExportNode
	order   []*ExportNode
	byID    map[uuid.UUID]*ExportNode
	byLocal map[entityKey]*ExportNode
}

// NewExporter returns an Exporter reading from repo.
func NewExporter(repo store.Repository, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		repo:    repo,
		logger:  logger.With(slog.String("component", "exporter")),
		now:     func() time.Time { return time.Now().UTC() },
		byID:    make(map[uuid.UUID]*ExportNode),
		byLocal: make(map[entityKey]*ExportNode),
	}
}

// ExportScreen registers screen as a root and walks its dependents.
func (e *Exporter) ExportScreen(ctx context.Context, screen *domain.Screen) error {
	node, err := e.visitScreen(ctx, screen)
	if err != nil {
		return err
	}
	e.addRoot(node)
	return nil
}

// ExportEntity registers the entity of kind with local id id as a root.
func (e *Exporter) ExportEntity(ctx context.Context, kind Kind, id int64) error {
	node, err := e.visit(ctx, kind, id, uuid.Nil)
	if err != nil {
		return err
	}
	e.addRoot(node)
	return nil
}

func (e *Exporter) addRoot(node *ExportNode) {
	for _, r := range e.roots {
		if r == node {
			return
		}
	}
	e.roots = append(e.roots, node)
	e.logger.Debug("export root registered",
		slog.String("kind", string(node.Kind)),
		slog.String("uuid", node.StableID.String()),
		slog.Int("nodes", len(e.order)))
}

// Tree returns the accumulated forest in registration order.
func (e *Exporter) Tree() []*ExportNode {
	return e.roots
}

// Payload flattens the forest. Nodes are listed once each in discovery order.
func (e *Exporter) Payload() *Payload {
	p := &Payload{
		Type:       PayloadType,
		Version:    PayloadVersion,
		ExportedAt: e.now(),
		Root:       make([]uuid.UUID, 0, len(e.roots)),
		Nodes:      make([]PayloadNode, 0, len(e.order)),
	}
	for _, r := range e.roots {
		p.Root = append(p.Root, r.StableID)
	}
	for _, n := range e.order {
		pn := PayloadNode{
			UUID:       n.StableID,
			Type:       n.Kind,
			Name:       n.Name,
			Attributes: n.Attributes,
		}
		for _, d := range n.Dependents {
			pn.Dependents = append(pn.Dependents, Ref{UUID: d.StableID, Type: d.Kind})
		}
		p.Nodes = append(p.Nodes, pn)
	}
	return p
}

// visit loads the entity of kind with local id id and walks it.
// parent is the stable id of the referencing node, or uuid.Nil for a root.
func (e *Exporter) visit(ctx context.Context, kind Kind, id int64, parent uuid.UUID) (*ExportNode, error) {
	if n, ok := e.byLocal[entityKey{kind, id}]; ok {
		return n, nil
	}

	switch kind {
	case KindScreenCategory:
		c, err := e.repo.ScreenCategories().GetByID(ctx, id)
		if err != nil {
			return nil, e.lookupError(err, kind, id, parent)
		}
		return e.register(kind, c.ID, c.UUID, c.Name, categoryAttributesOf(c.Name, c.Status))
	case KindScriptCategory:
		c, err := e.repo.ScriptCategories().GetByID(ctx, id)
		if err != nil {
			return nil, e.lookupError(err, kind, id, parent)
		}
		return e.register(kind, c.ID, c.UUID, c.Name, categoryAttributesOf(c.Name, c.Status))
	case KindScript:
		s, err := e.repo.Scripts().GetByID(ctx, id)
		if err != nil {
			return nil, e.lookupError(err, kind, id, parent)
		}
		return e.visitScript(ctx, s)
	case KindScreen:
		s, err := e.repo.Screens().GetByID(ctx, id)
		if err != nil {
			return nil, e.lookupError(err, kind, id, parent)
		}
		return e.visitScreen(ctx, s)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}

func (e *Exporter) lookupError(err error, kind Kind, id int64, parent uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return &ReferenceIntegrityError{Kind: kind, LocalID: id, ReferencedBy: parent}
	}
	return fmt.Errorf("failed to load %s %d: %w", kind, id, err)
}

// register records a new node, or returns the node already registered for
// the same entity. A different entity with the same stable id is an error.
func (e *Exporter) register(kind Kind, id int64, stableID uuid.UUID, name string, attrs map[string]any) (*ExportNode, error) {
	if n, ok := e.byLocal[entityKey{kind, id}]; ok {
		return n, nil
	}
	if n, ok := e.byID[stableID]; ok {
		return nil, &DuplicateStableIDError{StableID: stableID, First: n.Kind, Second: kind}
	}
	n := &ExportNode{
		StableID:   stableID,
		Kind:       kind,
		Name:       name,
		Attributes: attrs,
	}
	e.byID[stableID] = n
	e.byLocal[entityKey{kind, id}] = n
	e.order = append(e.order, n)
	return n, nil
}

func (n *ExportNode) addDependent(d *ExportNode) {
	if d == n {
		return
	}
	for _, existing := range n.Dependents {
		if existing == d {
			return
		}
	}
	n.Dependents = append(n.Dependents, d)
}

func (e *Exporter) visitScript(ctx context.Context, s *domain.Script) (*ExportNode, error) {
	if n, ok := e.byLocal[entityKey{KindScript, s.ID}]; ok {
		return n, nil
	}
	attrs := map[string]any{
		"title":            s.Title,
		"description":      s.Description,
		"language":         string(s.Language),
		"code":             s.Code,
		"timeout":          s.Timeout,
		attrScriptCategory: nil,
	}
	node, err := e.register(KindScript, s.ID, s.UUID, s.Title, attrs)
	if err != nil {
		return nil, err
	}

	if s.CategoryID != nil {
		cat, err := e.visit(ctx, KindScriptCategory, *s.CategoryID, s.UUID)
		if err != nil {
			return nil, err
		}
		node.addDependent(cat)
		attrs[attrScriptCategory] = cat.StableID.String()
	}
	return node, nil
}

func (e *Exporter) visitScreen(ctx context.Context, s *domain.Screen) (*ExportNode, error) {
	if n, ok := e.byLocal[entityKey{KindScreen, s.ID}]; ok {
		return n, nil
	}

	config, err := decodeRawJSON(s.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: screen %s: %v", domain.ErrInvalidScreenConfig, s.UUID, err)
	}
	watchers, err := decodeRawJSON(s.Watchers)
	if err != nil {
		return nil, fmt.Errorf("%w: screen %s: %v", domain.ErrInvalidScreenWatchers, s.UUID, err)
	}
	computed, err := decodeRawJSON(s.Computed)
	if err != nil {
		return nil, fmt.Errorf("screen %s has invalid computed properties: %w", s.UUID, err)
	}

	attrs := map[string]any{
		"title":       s.Title,
		"description": s.Description,
		"type":        string(s.Type),
		"computed":    computed,
		"custom_css":  s.CustomCSS,
	}
	node, err := e.register(KindScreen, s.ID, s.UUID, s.Title, attrs)
	if err != nil {
		return nil, err
	}

	categories := make([]any, 0, len(s.CategoryIDs))
	for _, id := range s.CategoryIDs {
		cat, err := e.visit(ctx, KindScreenCategory, id, s.UUID)
		if err != nil {
			return nil, err
		}
		node.addDependent(cat)
		categories = append(categories, cat.StableID.String())
	}
	attrs[attrScreenCategories] = categories

	scripts := make(map[int64]uuid.UUID)
	for _, id := range watcherScriptIDs(watchers) {
		script, err := e.visit(ctx, KindScript, id, s.UUID)
		if err != nil {
			return nil, err
		}
		node.addDependent(script)
		scripts[id] = script.StableID
	}
	err = rewriteWatcherScripts(watchers, func(ref any) (any, error) {
		id, ok := domain.AsInt64(ref)
		if !ok {
			return ref, nil
		}
		if sid, ok := scripts[id]; ok {
			return sid.String(), nil
		}
		return ref, nil
	})
	if err != nil {
		return nil, err
	}
	attrs[attrWatchers] = watchers

	nestedIDs, err := s.NestedScreenIDs()
	if err != nil {
		return nil, err
	}
	nested := make(map[int64]uuid.UUID)
	for _, id := range nestedIDs {
		child, err := e.visit(ctx, KindScreen, id, s.UUID)
		if err != nil {
			return nil, err
		}
		node.addDependent(child)
		nested[id] = child.StableID
	}
	err = rewriteNestedScreens(config, func(ref any) (any, error) {
		id, ok := domain.AsInt64(ref)
		if !ok {
			return ref, nil
		}
		if sid, ok := nested[id]; ok {
			return sid.String(), nil
		}
		return ref, nil
	})
	if err != nil {
		return nil, err
	}
	attrs[attrConfig] = config

	return node, nil
}
