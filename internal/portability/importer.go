package portability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/redact"
	"github.com/phrazzld/bpm-api/internal/store"
)

// Outcome is what an import did with one node.
type Outcome string

// Node outcomes
const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeInvalid Outcome = "invalid"
)

// NodeResult reports the outcome of one node.
type NodeResult struct {
	UUID    uuid.UUID `json:"uuid"`
	Type    Kind      `json:"type"`
	Name    string    `json:"name,omitempty"`
	Outcome Outcome   `json:"outcome"`
	LocalID int64     `json:"local_id,omitempty"`
}

// KindCounts tallies outcomes for one kind.
type KindCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Invalid int `json:"invalid"`
}

// Result summarizes a completed import. Nodes are listed in the order they
// were written.
type Result struct {
	Nodes  []NodeResult        `json:"nodes"`
	Counts map[Kind]KindCounts `json:"counts"`
	Errors []*ValidationError  `json:"errors,omitempty"`
}

func (r *Result) record(node *PayloadNode, outcome Outcome, localID int64) {
	r.Nodes = append(r.Nodes, NodeResult{
		UUID:    node.UUID,
		Type:    node.Type,
		Name:    node.Name,
		Outcome: outcome,
		LocalID: localID,
	})
	c := r.Counts[node.Type]
	switch outcome {
	case OutcomeCreated:
		c.Created++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeInvalid:
		c.Invalid++
	}
	r.Counts[node.Type] = c
}

// Outcome returns the outcome recorded for the node with stable id id.
func (r *Result) Outcome(id uuid.UUID) (Outcome, bool) {
	for _, n := range r.Nodes {
		if n.UUID == id {
			return n.Outcome, true
		}
	}
	return "", false
}

// Importer replays a Payload into a store.
//
// Nodes are written after everything they reference, so a parent always
// sees the local ids of its dependents. Nested screen references that close
// a cycle are written as null first and patched once every node has a
// local id. The whole import runs in one transaction.
//
// ReferenceIntegrityError and DuplicateStableIDError always abort. A
// ValidationError aborts under PolicyAbort; under PolicySkip the node is
// recorded as invalid and not written, and any written node referencing it
// aborts the import with a ReferenceIntegrityError.
type Importer struct {
	tx      store.Transactor
	payload *Payload
	options *Options
	logger  *slog.Logger
}

// NewImporter returns an Importer for payload. A nil options means DefaultOptions.
func NewImporter(tx store.Transactor, payload *Payload, options *Options, logger *slog.Logger) *Importer {
	if options == nil {
		options = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		tx:      tx,
		payload: payload,
		options: options,
		logger:  logger.With(slog.String("component", "importer")),
	}
}

// DoImport writes the payload and returns what happened to each node.
// On error nothing is written.
func (im *Importer) DoImport(ctx context.Context) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, im.logger)

	if im.payload == nil {
		return nil, fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	}
	p, err := newPlan(im.payload)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = im.tx.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		run := &importRun{
			repo:    repo,
			plan:    p,
			options: im.options,
			ids:     make(map[uuid.UUID]int64),
			kinds:   make(map[uuid.UUID]Kind),
			invalid: make(map[uuid.UUID]bool),
			result:  &Result{Counts: make(map[Kind]KindCounts)},
			log:     log,
		}
		for _, node := range p.order {
			if err := run.importNode(ctx, node); err != nil {
				return err
			}
		}
		if err := run.patchDeferred(ctx); err != nil {
			return err
		}
		result = run.result
		return nil
	})
	if err != nil {
		log.Warn("import aborted", redact.Attr(err), slog.String("options", im.options.String()))
		return nil, err
	}

	log.Info("import completed",
		slog.Int("nodes", len(result.Nodes)),
		slog.Int("invalid", len(result.Errors)),
		slog.String("options", im.options.String()))
	return result, nil
}

// plan is the checked, ordered form of a payload.
type plan struct {
	index map[uuid.UUID]*PayloadNode
	order []*PayloadNode
}

// newPlan indexes the nodes of p and orders them dependents-first.
func newPlan(p *Payload) (*plan, error) {
	pl := &plan{index: make(map[uuid.UUID]*PayloadNode, len(p.Nodes))}
	for i := range p.Nodes {
		n := &p.Nodes[i]
		if !n.Type.Valid() {
			return nil, fmt.Errorf("%w: node %s has type %q", ErrUnsupportedKind, n.UUID, n.Type)
		}
		if prev, ok := pl.index[n.UUID]; ok {
			return nil, &DuplicateStableIDError{StableID: n.UUID, First: prev.Type, Second: n.Type}
		}
		pl.index[n.UUID] = n
	}

	for _, id := range p.Root {
		if _, ok := pl.index[id]; !ok {
			return nil, &ReferenceIntegrityError{StableID: id, Reason: "is listed as a root but missing from the payload"}
		}
	}

	edges := make(map[uuid.UUID][]uuid.UUID, len(p.Nodes))
	for i := range p.Nodes {
		n := &p.Nodes[i]
		for _, ref := range n.Dependents {
			target, ok := pl.index[ref.UUID]
			if !ok {
				return nil, &ReferenceIntegrityError{Kind: ref.Type, StableID: ref.UUID, ReferencedBy: n.UUID,
					Reason: "is missing from the payload"}
			}
			if target.Type != ref.Type {
				return nil, &ReferenceIntegrityError{Kind: ref.Type, StableID: ref.UUID, ReferencedBy: n.UUID,
					Reason: fmt.Sprintf("is a %s in the payload", target.Type)}
			}
			edges[n.UUID] = append(edges[n.UUID], ref.UUID)
		}
		for _, ref := range referencesOf(n) {
			if _, ok := pl.index[ref.UUID]; ok {
				edges[n.UUID] = append(edges[n.UUID], ref.UUID)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[uuid.UUID]int, len(p.Nodes))
	var visit func(id uuid.UUID)
	visit = func(id uuid.UUID) {
		if state[id] != unvisited {
			return
		}
		state[id] = visiting
		for _, dep := range edges[id] {
			visit(dep)
		}
		state[id] = done
		pl.order = append(pl.order, pl.index[id])
	}
	for _, id := range p.Root {
		visit(id)
	}
	for i := range p.Nodes {
		visit(p.Nodes[i].UUID)
	}
	return pl, nil
}

// referencesOf lists the stable ids named in the attributes of n.
// Malformed attributes are ignored here and reported when the node is decoded.
func referencesOf(n *PayloadNode) []Ref {
	var refs []Ref
	switch n.Type {
	case KindScript:
		if id, ok := stableRef(n.Attributes[attrScriptCategory]); ok {
			refs = append(refs, Ref{UUID: id, Type: KindScriptCategory})
		}
	case KindScreen:
		if list, ok := n.Attributes[attrScreenCategories].([]any); ok {
			for _, v := range list {
				if id, ok := stableRef(v); ok {
					refs = append(refs, Ref{UUID: id, Type: KindScreenCategory})
				}
			}
		}
		for _, v := range watcherScripts.Get(n.Attributes[attrWatchers]) {
			if id, ok := stableRef(v); ok {
				refs = append(refs, Ref{UUID: id, Type: KindScript})
			}
		}
		_ = rewriteNestedScreens(deepCopy(n.Attributes[attrConfig]), func(v any) (any, error) {
			if id, ok := stableRef(v); ok {
				refs = append(refs, Ref{UUID: id, Type: KindScreen})
			}
			return v, nil
		})
	}
	return refs
}

// importRun is the state of one DoImport inside its transaction.
type importRun struct {
	repo    store.Repository
	plan    *plan
	options *Options
	log     *slog.Logger

	ids      map[uuid.UUID]int64
	kinds    map[uuid.UUID]Kind
	invalid  map[uuid.UUID]bool
	deferred []*PayloadNode
	result   *Result
}

// errDeferred marks a nested screen reference to a node not yet written.
var errDeferred = errors.New("reference deferred")

func (r *importRun) importNode(ctx context.Context, node *PayloadNode) error {
	var (
		outcome Outcome
		localID int64
		err     error
	)
	switch node.Type {
	case KindScreenCategory:
		outcome, localID, err = r.importScreenCategory(ctx, node)
	case KindScriptCategory:
		outcome, localID, err = r.importScriptCategory(ctx, node)
	case KindScript:
		outcome, localID, err = r.importScript(ctx, node)
	case KindScreen:
		outcome, localID, err = r.importScreen(ctx, node)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, node.Type)
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		if r.options.ValidationPolicy() == PolicyAbort {
			return verr
		}
		r.log.Warn("skipping invalid node",
			slog.String("kind", string(node.Type)),
			slog.String("uuid", node.UUID.String()),
			slog.String("error", verr.Error()))
		r.invalid[node.UUID] = true
		r.result.Errors = append(r.result.Errors, verr)
		r.result.record(node, OutcomeInvalid, 0)
		return nil
	}
	if err != nil {
		return err
	}

	r.ids[node.UUID] = localID
	r.kinds[node.UUID] = node.Type
	r.result.record(node, outcome, localID)
	r.log.Debug("node imported",
		slog.String("kind", string(node.Type)),
		slog.String("uuid", node.UUID.String()),
		slog.String("outcome", string(outcome)),
		slog.Int64("local_id", localID))
	return nil
}

// resolve returns the local id of the kind entity with stable id id.
func (r *importRun) resolve(ctx context.Context, kind Kind, id, referencedBy uuid.UUID) (int64, error) {
	refErr := func(reason string) error {
		return &ReferenceIntegrityError{Kind: kind, StableID: id, ReferencedBy: referencedBy, Reason: reason}
	}

	if r.invalid[id] {
		return 0, refErr("was rejected by validation")
	}
	if local, ok := r.ids[id]; ok {
		if r.kinds[id] != kind {
			return 0, refErr(fmt.Sprintf("is a %s", r.kinds[id]))
		}
		return local, nil
	}
	if n, ok := r.plan.index[id]; ok {
		if n.Type != kind {
			return 0, refErr(fmt.Sprintf("is a %s in the payload", n.Type))
		}
		if kind == KindScreen {
			return 0, errDeferred
		}
		return 0, refErr("was not written before its dependents")
	}

	var (
		local int64
		err   error
	)
	switch kind {
	case KindScreenCategory:
		var c *domain.ScreenCategory
		if c, err = r.repo.ScreenCategories().GetByUUID(ctx, id); err == nil {
			local = c.ID
		}
	case KindScriptCategory:
		var c *domain.ScriptCategory
		if c, err = r.repo.ScriptCategories().GetByUUID(ctx, id); err == nil {
			local = c.ID
		}
	case KindScript:
		var s *domain.Script
		if s, err = r.repo.Scripts().GetByUUID(ctx, id); err == nil {
			local = s.ID
		}
	case KindScreen:
		var s *domain.Screen
		if s, err = r.repo.Screens().GetByUUID(ctx, id); err == nil {
			local = s.ID
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		return 0, refErr("is neither in the payload nor in the store")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s %s: %w", kind, id, err)
	}
	r.ids[id] = local
	r.kinds[id] = kind
	return local, nil
}

// lookupExisting reports whether err from a GetByUUID means "absent".
func lookupExisting(err error) (found bool, fatal error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (r *importRun) importScreenCategory(ctx context.Context, node *PayloadNode) (Outcome, int64, error) {
	existing, err := r.repo.ScreenCategories().GetByUUID(ctx, node.UUID)
	found, err := lookupExisting(err)
	if err != nil {
		return "", 0, fmt.Errorf("failed to look up screen category %s: %w", node.UUID, err)
	}
	if found && r.options.ModeFor(node.UUID) == ModeSkip {
		return OutcomeSkipped, existing.ID, nil
	}

	var attrs categoryAttributes
	if err := decodeAttributes(node, &attrs); err != nil {
		return "", 0, err
	}
	status := domain.CategoryStatus(attrs.Status)
	if status == "" {
		status = domain.CategoryStatusActive
	}

	if !found {
		c := &domain.ScreenCategory{UUID: node.UUID, Name: attrs.Name, Status: status}
		if err := c.Validate(); err != nil {
			return "", 0, fromDomainError(node, err)
		}
		if err := r.repo.ScreenCategories().Create(ctx, c); err != nil {
			return "", 0, fmt.Errorf("failed to create screen category %s: %w", node.UUID, err)
		}
		return OutcomeCreated, c.ID, nil
	}

	existing.Name = attrs.Name
	existing.Status = status
	if err := existing.Validate(); err != nil {
		return "", 0, fromDomainError(node, err)
	}
	if err := r.repo.ScreenCategories().Update(ctx, existing); err != nil {
		return "", 0, fmt.Errorf("failed to update screen category %s: %w", node.UUID, err)
	}
	return OutcomeUpdated, existing.ID, nil
}

func (r *importRun) importScriptCategory(ctx context.Context, node *PayloadNode) (Outcome, int64, error) {
	existing, err := r.repo.ScriptCategories().GetByUUID(ctx, node.UUID)
	found, err := lookupExisting(err)
	if err != nil {
		return "", 0, fmt.Errorf("failed to look up script category %s: %w", node.UUID, err)
	}
	if found && r.options.ModeFor(node.UUID) == ModeSkip {
		return OutcomeSkipped, existing.ID, nil
	}

	var attrs categoryAttributes
	if err := decodeAttributes(node, &attrs); err != nil {
		return "", 0, err
	}
	status := domain.CategoryStatus(attrs.Status)
	if status == "" {
		status = domain.CategoryStatusActive
	}

	if !found {
		c := &domain.ScriptCategory{UUID: node.UUID, Name: attrs.Name, Status: status}
		if err := c.Validate(); err != nil {
			return "", 0, fromDomainError(node, err)
		}
		if err := r.repo.ScriptCategories().Create(ctx, c); err != nil {
			return "", 0, fmt.Errorf("failed to create script category %s: %w", node.UUID, err)
		}
		return OutcomeCreated, c.ID, nil
	}

	existing.Name = attrs.Name
	existing.Status = status
	if err := existing.Validate(); err != nil {
		return "", 0, fromDomainError(node, err)
	}
	if err := r.repo.ScriptCategories().Update(ctx, existing); err != nil {
		return "", 0, fmt.Errorf("failed to update script category %s: %w", node.UUID, err)
	}
	return OutcomeUpdated, existing.ID, nil
}

func (r *importRun) importScript(ctx context.Context, node *PayloadNode) (Outcome, int64, error) {
	existing, err := r.repo.Scripts().GetByUUID(ctx, node.UUID)
	found, err := lookupExisting(err)
	if err != nil {
		return "", 0, fmt.Errorf("failed to look up script %s: %w", node.UUID, err)
	}
	if found && r.options.ModeFor(node.UUID) == ModeSkip {
		return OutcomeSkipped, existing.ID, nil
	}

	var attrs scriptAttributes
	if err := decodeAttributes(node, &attrs); err != nil {
		return "", 0, err
	}

	var categoryID *int64
	if attrs.ScriptCategory != "" {
		id, err := r.resolve(ctx, KindScriptCategory, uuid.MustParse(attrs.ScriptCategory), node.UUID)
		if err != nil {
			return "", 0, err
		}
		categoryID = &id
	}

	script := existing
	if !found {
		script = &domain.Script{UUID: node.UUID}
	}
	script.Title = attrs.Title
	script.Description = attrs.Description
	script.Language = domain.ScriptLanguage(attrs.Language)
	script.Code = attrs.Code
	script.Timeout = attrs.Timeout
	script.CategoryID = categoryID
	if err := script.Validate(); err != nil {
		return "", 0, fromDomainError(node, err)
	}

	if !found {
		if err := r.repo.Scripts().Create(ctx, script); err != nil {
			return "", 0, fmt.Errorf("failed to create script %s: %w", node.UUID, err)
		}
		return OutcomeCreated, script.ID, nil
	}
	if err := r.repo.Scripts().Update(ctx, script); err != nil {
		return "", 0, fmt.Errorf("failed to update script %s: %w", node.UUID, err)
	}
	return OutcomeUpdated, script.ID, nil
}

func (r *importRun) importScreen(ctx context.Context, node *PayloadNode) (Outcome, int64, error) {
	existing, err := r.repo.Screens().GetByUUID(ctx, node.UUID)
	found, err := lookupExisting(err)
	if err != nil {
		return "", 0, fmt.Errorf("failed to look up screen %s: %w", node.UUID, err)
	}
	if found && r.options.ModeFor(node.UUID) == ModeSkip {
		return OutcomeSkipped, existing.ID, nil
	}

	var attrs screenAttributes
	if err := decodeAttributes(node, &attrs); err != nil {
		return "", 0, err
	}

	categoryIDs := make([]int64, 0, len(attrs.ScreenCategories))
	for _, ref := range attrs.ScreenCategories {
		id, err := r.resolve(ctx, KindScreenCategory, uuid.MustParse(ref), node.UUID)
		if err != nil {
			return "", 0, err
		}
		categoryIDs = append(categoryIDs, id)
	}

	watchers := deepCopy(attrs.Watchers)
	err = rewriteWatcherScripts(watchers, func(ref any) (any, error) {
		id, ok := stableRef(ref)
		if !ok {
			return ref, nil
		}
		return r.resolve(ctx, KindScript, id, node.UUID)
	})
	if err != nil {
		return "", 0, err
	}

	config, deferred, err := r.resolveNestedScreens(ctx, node, attrs.Config)
	if err != nil {
		return "", 0, err
	}

	screen := existing
	if !found {
		screen = &domain.Screen{UUID: node.UUID, Translations: []byte(`{}`)}
	}
	screen.Title = attrs.Title
	screen.Description = attrs.Description
	screen.Type = domain.ScreenType(attrs.Type)
	screen.CustomCSS = attrs.CustomCSS
	screen.CategoryIDs = categoryIDs
	if screen.Config, err = encodeRawJSON(config, "[]"); err != nil {
		return "", 0, &ValidationError{Kind: node.Type, StableID: node.UUID, Field: attrConfig, Message: err.Error(), Err: err}
	}
	if screen.Watchers, err = encodeRawJSON(watchers, "[]"); err != nil {
		return "", 0, &ValidationError{Kind: node.Type, StableID: node.UUID, Field: attrWatchers, Message: err.Error(), Err: err}
	}
	if screen.Computed, err = encodeRawJSON(attrs.Computed, "[]"); err != nil {
		return "", 0, &ValidationError{Kind: node.Type, StableID: node.UUID, Field: "computed", Message: err.Error(), Err: err}
	}
	if err := screen.Validate(); err != nil {
		return "", 0, fromDomainError(node, err)
	}

	outcome := OutcomeUpdated
	if found {
		err = r.repo.Screens().Update(ctx, screen)
	} else {
		outcome = OutcomeCreated
		err = r.repo.Screens().Create(ctx, screen)
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to write screen %s: %w", node.UUID, err)
	}
	if deferred {
		r.deferred = append(r.deferred, node)
	}
	return outcome, screen.ID, nil
}

// resolveNestedScreens returns a copy of config with nested screen references
// rewritten to local ids. References to screens not yet written become null
// and deferred is true.
func (r *importRun) resolveNestedScreens(ctx context.Context, node *PayloadNode, config any) (any, bool, error) {
	out := deepCopy(config)
	deferred := false
	err := rewriteNestedScreens(out, func(ref any) (any, error) {
		id, ok := stableRef(ref)
		if !ok {
			return ref, nil
		}
		local, err := r.resolve(ctx, KindScreen, id, node.UUID)
		if errors.Is(err, errDeferred) {
			deferred = true
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return local, nil
	})
	return out, deferred, err
}

// patchDeferred rewrites the nested screen references left null by importScreen.
func (r *importRun) patchDeferred(ctx context.Context) error {
	for _, node := range r.deferred {
		var attrs screenAttributes
		if err := decodeAttributes(node, &attrs); err != nil {
			return err
		}
		config, deferred, err := r.resolveNestedScreens(ctx, node, attrs.Config)
		if err != nil {
			return err
		}
		if deferred {
			return &ReferenceIntegrityError{Kind: KindScreen, ReferencedBy: node.UUID,
				Reason: "could not be resolved after all nodes were written"}
		}

		screen, err := r.repo.Screens().GetByID(ctx, r.ids[node.UUID])
		if err != nil {
			return fmt.Errorf("failed to reload screen %s: %w", node.UUID, err)
		}
		if screen.Config, err = encodeRawJSON(config, "[]"); err != nil {
			return fmt.Errorf("failed to encode screen %s config: %w", node.UUID, err)
		}
		if err := r.repo.Screens().Update(ctx, screen); err != nil {
			return fmt.Errorf("failed to patch screen %s: %w", node.UUID, err)
		}
		r.log.Debug("patched nested screen references", slog.String("uuid", node.UUID.String()))
	}
	return nil
}

// deepCopy copies the maps and slices of a decoded JSON value.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}
