package mocks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// MemoryRepository is an in-memory store.Repository and store.Transactor.
//
// Stores hand out copies, so callers never alias stored entities. WithinTx
// snapshots all tables and restores them when fn fails, which gives tests the
// same all-or-nothing behavior as a database transaction.
type MemoryRepository struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memoryData

	// WithinTxErr, when set, is returned by WithinTx without running fn.
	WithinTxErr error
}

type memoryData struct {
	nextID           int64
	screens          map[int64]*domain.Screen
	screenCategories map[int64]*domain.ScreenCategory
	scripts          map[int64]*domain.Script
	scriptCategories map[int64]*domain.ScriptCategory
	tasks            map[int64]*domain.Task
	processRequests  map[int64]*domain.ProcessRequest
	users            map[uuid.UUID]*domain.User
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: newMemoryData()}
}

func newMemoryData() memoryData {
	return memoryData{
		screens:          make(map[int64]*domain.Screen),
		screenCategories: make(map[int64]*domain.ScreenCategory),
		scripts:          make(map[int64]*domain.Script),
		scriptCategories: make(map[int64]*domain.ScriptCategory),
		tasks:            make(map[int64]*domain.Task),
		processRequests:  make(map[int64]*domain.ProcessRequest),
		users:            make(map[uuid.UUID]*domain.User),
	}
}

var (
	_ store.Repository = (*MemoryRepository)(nil)
	_ store.Transactor = (*MemoryRepository)(nil)
)

func (r *MemoryRepository) Screens() store.ScreenStore { return &memoryScreenStore{r} }
func (r *MemoryRepository) ScreenCategories() store.ScreenCategoryStore {
	return &memoryScreenCategoryStore{r}
}
func (r *MemoryRepository) Scripts() store.ScriptStore { return &memoryScriptStore{r} }
func (r *MemoryRepository) ScriptCategories() store.ScriptCategoryStore {
	return &memoryScriptCategoryStore{r}
}
func (r *MemoryRepository) Tasks() store.TaskStore { return &memoryTaskStore{r} }
func (r *MemoryRepository) ProcessRequests() store.ProcessRequestStore {
	return &memoryProcessRequestStore{r}
}
func (r *MemoryRepository) Users() store.UserStore { return &memoryUserStore{r} }

// WithinTx implements store.Transactor.
func (r *MemoryRepository) WithinTx(ctx context.Context, fn store.RepoFn) (err error) {
	if r.WithinTxErr != nil {
		return r.WithinTxErr
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.data.clone()
	r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.restore(snapshot)
			panic(p)
		}
		if err != nil {
			r.restore(snapshot)
		}
	}()
	return fn(ctx, r)
}

func (r *MemoryRepository) restore(d memoryData) {
	r.mu.Lock()
	r.data = d
	r.mu.Unlock()
}

func (r *MemoryRepository) nextID() int64 {
	r.data.nextID++
	return r.data.nextID
}

func (d memoryData) clone() memoryData {
	c := newMemoryData()
	c.nextID = d.nextID
	for id, v := range d.screens {
		c.screens[id] = copyScreen(v)
	}
	for id, v := range d.screenCategories {
		cp := *v
		c.screenCategories[id] = &cp
	}
	for id, v := range d.scripts {
		c.scripts[id] = copyScript(v)
	}
	for id, v := range d.scriptCategories {
		cp := *v
		c.scriptCategories[id] = &cp
	}
	for id, v := range d.tasks {
		c.tasks[id] = copyTask(v)
	}
	for id, v := range d.processRequests {
		cp := *v
		cp.Data = copyRaw(v.Data)
		c.processRequests[id] = &cp
	}
	for id, v := range d.users {
		cp := *v
		c.users[id] = &cp
	}
	return c
}

func copyRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func copyScreen(s *domain.Screen) *domain.Screen {
	cp := *s
	cp.Config = copyRaw(s.Config)
	cp.Computed = copyRaw(s.Computed)
	cp.Watchers = copyRaw(s.Watchers)
	cp.Translations = copyRaw(s.Translations)
	cp.CategoryIDs = append([]int64(nil), s.CategoryIDs...)
	return &cp
}

func copyScript(s *domain.Script) *domain.Script {
	cp := *s
	if s.CategoryID != nil {
		id := *s.CategoryID
		cp.CategoryID = &id
	}
	return &cp
}

func copyTask(t *domain.Task) *domain.Task {
	cp := *t
	cp.Data = copyRaw(t.Data)
	if t.UserID != nil {
		id := *t.UserID
		cp.UserID = &id
	}
	copyTime := func(p *time.Time) *time.Time {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	cp.CompletedAt = copyTime(t.CompletedAt)
	cp.DueAt = copyTime(t.DueAt)
	cp.InitiatedAt = copyTime(t.InitiatedAt)
	cp.RiskchangesAt = copyTime(t.RiskchangesAt)
	return &cp
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

// dedupe keeps the first occurrence of each id, as the screen_category_links primary key does.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := []int64{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type memoryScreenStore struct{ r *MemoryRepository }

func (s *memoryScreenStore) Create(_ context.Context, screen *domain.Screen) error {
	if err := screen.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, existing := range s.r.data.screens {
		if existing.UUID == screen.UUID {
			return fmt.Errorf("%w: screen %s", store.ErrUUIDExists, screen.UUID)
		}
	}
	if err := s.checkCategories(screen.CategoryIDs); err != nil {
		return err
	}
	stamp(&screen.CreatedAt, &screen.UpdatedAt)
	screen.ID = s.r.nextID()
	stored := copyScreen(screen)
	stored.CategoryIDs = dedupe(stored.CategoryIDs)
	s.r.data.screens[screen.ID] = stored
	return nil
}

func (s *memoryScreenStore) checkCategories(ids []int64) error {
	for _, id := range ids {
		if _, ok := s.r.data.screenCategories[id]; !ok {
			return fmt.Errorf("%w: screen category %d not found", store.ErrInvalidEntity, id)
		}
	}
	return nil
}

func (s *memoryScreenStore) GetByID(_ context.Context, id int64) (*domain.Screen, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	screen, ok := s.r.data.screens[id]
	if !ok {
		return nil, store.ErrScreenNotFound
	}
	return copyScreen(screen), nil
}

func (s *memoryScreenStore) GetByUUID(_ context.Context, id uuid.UUID) (*domain.Screen, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, screen := range s.r.data.screens {
		if screen.UUID == id {
			return copyScreen(screen), nil
		}
	}
	return nil, store.ErrScreenNotFound
}

func (s *memoryScreenStore) Update(_ context.Context, screen *domain.Screen) error {
	if err := screen.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	existing, ok := s.r.data.screens[screen.ID]
	if !ok {
		return store.ErrScreenNotFound
	}
	if err := s.checkCategories(screen.CategoryIDs); err != nil {
		return err
	}
	screen.UpdatedAt = time.Now().UTC()
	stored := copyScreen(screen)
	stored.UUID = existing.UUID
	stored.CreatedAt = existing.CreatedAt
	stored.CategoryIDs = dedupe(stored.CategoryIDs)
	s.r.data.screens[screen.ID] = stored
	return nil
}

func (s *memoryScreenStore) Delete(_ context.Context, id int64) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.data.screens[id]; !ok {
		return store.ErrScreenNotFound
	}
	delete(s.r.data.screens, id)
	return nil
}

func (s *memoryScreenStore) Count(_ context.Context) (int, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return len(s.r.data.screens), nil
}

func (s *memoryScreenStore) WithTx(_ *sql.Tx) store.ScreenStore { return s }

type memoryScreenCategoryStore struct{ r *MemoryRepository }

func (s *memoryScreenCategoryStore) Create(_ context.Context, c *domain.ScreenCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, existing := range s.r.data.screenCategories {
		if existing.UUID == c.UUID {
			return fmt.Errorf("%w: screen category %s", store.ErrUUIDExists, c.UUID)
		}
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	c.ID = s.r.nextID()
	cp := *c
	s.r.data.screenCategories[c.ID] = &cp
	return nil
}

func (s *memoryScreenCategoryStore) GetByID(_ context.Context, id int64) (*domain.ScreenCategory, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	c, ok := s.r.data.screenCategories[id]
	if !ok {
		return nil, store.ErrScreenCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryScreenCategoryStore) GetByUUID(_ context.Context, id uuid.UUID) (*domain.ScreenCategory, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, c := range s.r.data.screenCategories {
		if c.UUID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrScreenCategoryNotFound
}

func (s *memoryScreenCategoryStore) Update(_ context.Context, c *domain.ScreenCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	existing, ok := s.r.data.screenCategories[c.ID]
	if !ok {
		return store.ErrScreenCategoryNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	cp.UUID = existing.UUID
	cp.CreatedAt = existing.CreatedAt
	s.r.data.screenCategories[c.ID] = &cp
	return nil
}

// Delete also drops the category from every screen, like the link table's cascade.
func (s *memoryScreenCategoryStore) Delete(_ context.Context, id int64) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.data.screenCategories[id]; !ok {
		return store.ErrScreenCategoryNotFound
	}
	delete(s.r.data.screenCategories, id)
	for _, screen := range s.r.data.screens {
		kept := screen.CategoryIDs[:0]
		for _, cid := range screen.CategoryIDs {
			if cid != id {
				kept = append(kept, cid)
			}
		}
		screen.CategoryIDs = kept
	}
	return nil
}

func (s *memoryScreenCategoryStore) Count(_ context.Context) (int, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return len(s.r.data.screenCategories), nil
}

func (s *memoryScreenCategoryStore) WithTx(_ *sql.Tx) store.ScreenCategoryStore { return s }

type memoryScriptStore struct{ r *MemoryRepository }

func (s *memoryScriptStore) Create(_ context.Context, script *domain.Script) error {
	if err := script.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, existing := range s.r.data.scripts {
		if existing.UUID == script.UUID {
			return fmt.Errorf("%w: script %s", store.ErrUUIDExists, script.UUID)
		}
	}
	if err := s.checkCategory(script.CategoryID); err != nil {
		return err
	}
	stamp(&script.CreatedAt, &script.UpdatedAt)
	script.ID = s.r.nextID()
	s.r.data.scripts[script.ID] = copyScript(script)
	return nil
}

func (s *memoryScriptStore) checkCategory(id *int64) error {
	if id == nil {
		return nil
	}
	if _, ok := s.r.data.scriptCategories[*id]; !ok {
		return fmt.Errorf("%w: script category %d not found", store.ErrInvalidEntity, *id)
	}
	return nil
}

func (s *memoryScriptStore) GetByID(_ context.Context, id int64) (*domain.Script, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	script, ok := s.r.data.scripts[id]
	if !ok {
		return nil, store.ErrScriptNotFound
	}
	return copyScript(script), nil
}

func (s *memoryScriptStore) GetByUUID(_ context.Context, id uuid.UUID) (*domain.Script, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, script := range s.r.data.scripts {
		if script.UUID == id {
			return copyScript(script), nil
		}
	}
	return nil, store.ErrScriptNotFound
}

func (s *memoryScriptStore) Update(_ context.Context, script *domain.Script) error {
	if err := script.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	existing, ok := s.r.data.scripts[script.ID]
	if !ok {
		return store.ErrScriptNotFound
	}
	if err := s.checkCategory(script.CategoryID); err != nil {
		return err
	}
	script.UpdatedAt = time.Now().UTC()
	stored := copyScript(script)
	stored.UUID = existing.UUID
	stored.CreatedAt = existing.CreatedAt
	s.r.data.scripts[script.ID] = stored
	return nil
}

func (s *memoryScriptStore) Delete(_ context.Context, id int64) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.data.scripts[id]; !ok {
		return store.ErrScriptNotFound
	}
	delete(s.r.data.scripts, id)
	return nil
}

func (s *memoryScriptStore) Count(_ context.Context) (int, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return len(s.r.data.scripts), nil
}

func (s *memoryScriptStore) WithTx(_ *sql.Tx) store.ScriptStore { return s }

type memoryScriptCategoryStore struct{ r *MemoryRepository }

func (s *memoryScriptCategoryStore) Create(_ context.Context, c *domain.ScriptCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, existing := range s.r.data.scriptCategories {
		if existing.UUID == c.UUID {
			return fmt.Errorf("%w: script category %s", store.ErrUUIDExists, c.UUID)
		}
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	c.ID = s.r.nextID()
	cp := *c
	s.r.data.scriptCategories[c.ID] = &cp
	return nil
}

func (s *memoryScriptCategoryStore) GetByID(_ context.Context, id int64) (*domain.ScriptCategory, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	c, ok := s.r.data.scriptCategories[id]
	if !ok {
		return nil, store.ErrScriptCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryScriptCategoryStore) GetByUUID(_ context.Context, id uuid.UUID) (*domain.ScriptCategory, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, c := range s.r.data.scriptCategories {
		if c.UUID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrScriptCategoryNotFound
}

func (s *memoryScriptCategoryStore) Update(_ context.Context, c *domain.ScriptCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	existing, ok := s.r.data.scriptCategories[c.ID]
	if !ok {
		return store.ErrScriptCategoryNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	cp.UUID = existing.UUID
	cp.CreatedAt = existing.CreatedAt
	s.r.data.scriptCategories[c.ID] = &cp
	return nil
}

// Delete clears the category of its scripts, like ON DELETE SET NULL.
func (s *memoryScriptCategoryStore) Delete(_ context.Context, id int64) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.data.scriptCategories[id]; !ok {
		return store.ErrScriptCategoryNotFound
	}
	delete(s.r.data.scriptCategories, id)
	for _, script := range s.r.data.scripts {
		if script.CategoryID != nil && *script.CategoryID == id {
			script.CategoryID = nil
		}
	}
	return nil
}

func (s *memoryScriptCategoryStore) Count(_ context.Context) (int, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return len(s.r.data.scriptCategories), nil
}

func (s *memoryScriptCategoryStore) WithTx(_ *sql.Tx) store.ScriptCategoryStore { return s }

type memoryTaskStore struct{ r *MemoryRepository }

func (s *memoryTaskStore) Create(_ context.Context, task *domain.Task) error {
	if !domain.IsValidTaskStatus(task.Status) {
		return domain.NewValidationError("status", "is not supported", domain.ErrInvalidTaskStatus)
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.data.processRequests[task.ProcessRequestID]; !ok {
		return fmt.Errorf("%w: process request %d not found", store.ErrInvalidEntity, task.ProcessRequestID)
	}
	stamp(&task.CreatedAt, &task.UpdatedAt)
	task.ID = s.r.nextID()
	s.r.data.tasks[task.ID] = copyTask(task)
	return nil
}

func (s *memoryTaskStore) GetByID(_ context.Context, id int64) (*domain.Task, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	task, ok := s.r.data.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(task), nil
}

// List filters, orders and pages tasks the way the SQL store does:
// ascending orders put nil values first, descending orders put them last,
// and the task id breaks ties.
func (s *memoryTaskStore) List(_ context.Context, filter store.TaskFilter) ([]*domain.Task, int, error) {
	for _, o := range filter.Order {
		if !store.IsSortableTaskColumn(o.Column) {
			return nil, 0, fmt.Errorf("%w: cannot order tasks by %q", store.ErrInvalidEntity, o.Column)
		}
	}

	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	var matched []*domain.Task
	for _, task := range s.r.data.tasks {
		if filter.UserID != nil && !task.IsAssignedTo(*filter.UserID) {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		matched = append(matched, task)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range filter.Order {
			c := s.compare(matched[i], matched[j], o.Column)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].ID < matched[j].ID
	})

	limit, offset, err := filter.Window()
	if err != nil {
		return nil, 0, err
	}
	total := len(matched)
	start := min(offset, total)
	end := start + min(limit, total-start)

	out := make([]*domain.Task, 0, end-start)
	for _, task := range matched[start:end] {
		out = append(out, copyTask(task))
	}
	return out, total, nil
}

// compare orders a before b on column, treating nil as the smallest value.
func (s *memoryTaskStore) compare(a, b *domain.Task, column string) int {
	switch column {
	case "id":
		return compareInt(a.ID, b.ID)
	case "process_request_id", "process_requests.id":
		return compareInt(a.ProcessRequestID, b.ProcessRequestID)
	case "element_name":
		return strings.Compare(a.ElementName, b.ElementName)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "process_requests.name":
		return strings.Compare(s.requestName(a), s.requestName(b))
	case "due_at":
		return compareTime(a.DueAt, b.DueAt)
	case "completed_at":
		return compareTime(a.CompletedAt, b.CompletedAt)
	case "created_at":
		return compareTime(&a.CreatedAt, &b.CreatedAt)
	case "updated_at":
		return compareTime(&a.UpdatedAt, &b.UpdatedAt)
	}
	return 0
}

func (s *memoryTaskStore) requestName(t *domain.Task) string {
	if pr, ok := s.r.data.processRequests[t.ProcessRequestID]; ok {
		return pr.Name
	}
	return ""
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func (s *memoryTaskStore) UpdateStatus(_ context.Context, task *domain.Task) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	existing, ok := s.r.data.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now().UTC()
	}
	updated := copyTask(existing)
	updated.Status = task.Status
	updated.Data = copyRaw(task.Data)
	updated.UpdatedAt = task.UpdatedAt
	updated.CompletedAt = nil
	if task.CompletedAt != nil {
		v := *task.CompletedAt
		updated.CompletedAt = &v
	}
	s.r.data.tasks[task.ID] = updated
	return nil
}

func (s *memoryTaskStore) WithTx(_ *sql.Tx) store.TaskStore { return s }

type memoryProcessRequestStore struct{ r *MemoryRepository }

func (s *memoryProcessRequestStore) Create(_ context.Context, request *domain.ProcessRequest) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	stamp(&request.CreatedAt, &request.UpdatedAt)
	if request.Status == "" {
		request.Status = string(domain.TaskStatusActive)
	}
	request.ID = s.r.nextID()
	cp := *request
	cp.Data = copyRaw(request.Data)
	s.r.data.processRequests[request.ID] = &cp
	return nil
}

func (s *memoryProcessRequestStore) GetByID(_ context.Context, id int64) (*domain.ProcessRequest, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	request, ok := s.r.data.processRequests[id]
	if !ok {
		return nil, store.ErrProcessRequestNotFound
	}
	cp := *request
	cp.Data = copyRaw(request.Data)
	return &cp, nil
}

func (s *memoryProcessRequestStore) UpdateData(_ context.Context, id int64, data json.RawMessage) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	request, ok := s.r.data.processRequests[id]
	if !ok {
		return store.ErrProcessRequestNotFound
	}
	request.Data = copyRaw(data)
	request.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryProcessRequestStore) WithTx(_ *sql.Tx) store.ProcessRequestStore { return s }

type memoryUserStore struct{ r *MemoryRepository }

// Create hashes the password with bcrypt.MinCost and clears the plaintext.
func (s *memoryUserStore) Create(_ context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, existing := range s.r.data.users {
		if existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	if user.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.HashedPassword = string(hash)
		user.Password = ""
	}
	stamp(&user.CreatedAt, &user.UpdatedAt)
	cp := *user
	s.r.data.users[user.ID] = &cp
	return nil
}

func (s *memoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	user, ok := s.r.data.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	email = strings.ToLower(email)
	for _, user := range s.r.data.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *memoryUserStore) WithTx(_ *sql.Tx) store.UserStore { return s }
