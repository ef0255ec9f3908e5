// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments. The durable backends wrap
// it and snapshot its state after every commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"agrilog/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// User aliases domain.User for in-memory persistence operations.
	User = domain.User
	// CropType aliases domain.CropType.
	CropType = domain.CropType
	// Field aliases domain.Field.
	Field = domain.Field
	// Cultivation aliases domain.Cultivation.
	Cultivation = domain.Cultivation
	// Treatment aliases domain.Treatment.
	Treatment = domain.Treatment
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	users        map[string]User
	cropTypes    map[string]CropType
	fields       map[string]Field
	cultivations map[string]Cultivation
	treatments   map[string]Treatment
}

func newMemoryState() memoryState {
	return memoryState{
		users:        make(map[string]User),
		cropTypes:    make(map[string]CropType),
		fields:       make(map[string]Field),
		cultivations: make(map[string]Cultivation),
		treatments:   make(map[string]Treatment),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.users {
		cloned.users[k] = v
	}
	for k, v := range s.cropTypes {
		cloned.cropTypes[k] = v
	}
	for k, v := range s.fields {
		cloned.fields[k] = cloneField(v)
	}
	for k, v := range s.cultivations {
		cloned.cultivations[k] = cloneCultivation(v)
	}
	for k, v := range s.treatments {
		cloned.treatments[k] = cloneTreatment(v)
	}
	return cloned
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneField(f Field) Field {
	cp := f
	cp.Notes = cloneStringPtr(f.Notes)
	cp.OwnerID = cloneStringPtr(f.OwnerID)
	return cp
}

func cloneCultivation(c Cultivation) Cultivation {
	cp := c
	cp.FieldID = cloneStringPtr(c.FieldID)
	cp.CropTypeID = cloneStringPtr(c.CropTypeID)
	cp.OwnerID = cloneStringPtr(c.OwnerID)
	return cp
}

func cloneTreatment(t Treatment) Treatment {
	cp := t
	cp.CropTypeID = cloneStringPtr(t.CropTypeID)
	cp.CultivationID = cloneStringPtr(t.CultivationID)
	return cp
}

func sameRef(p *string, id string) bool {
	return p != nil && *p == id
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func newID() string {
	return uuid.NewString()
}

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The rules engine inspects the resulting changes before the copy is committed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(domain.WithTransactionTime(ctx, tx.now), view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// CreateUser stores a new account.
func (tx *transaction) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return User{}, fmt.Errorf("user %q already exists", u.ID)
	}
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = u
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}

// UpdateUser mutates an existing account.
func (tx *transaction) UpdateUser(id string, mutator func(*User) error) (User, error) {
	current, ok := tx.state.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return User{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.users[id] = current
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreateCropType stores a new crop type.
func (tx *transaction) CreateCropType(c CropType) (CropType, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if _, exists := tx.state.cropTypes[c.ID]; exists {
		return CropType{}, fmt.Errorf("crop type %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.cropTypes[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCropType, Action: domain.ActionCreate, After: c})
	return c, nil
}

// UpdateCropType mutates an existing crop type.
func (tx *transaction) UpdateCropType(id string, mutator func(*CropType) error) (CropType, error) {
	current, ok := tx.state.cropTypes[id]
	if !ok {
		return CropType{}, fmt.Errorf("crop type %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return CropType{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.cropTypes[id] = current
	tx.recordChange(Change{Entity: domain.EntityCropType, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreateField stores a new field.
func (tx *transaction) CreateField(f Field) (Field, error) {
	if f.ID == "" {
		f.ID = newID()
	}
	if _, exists := tx.state.fields[f.ID]; exists {
		return Field{}, fmt.Errorf("field %q already exists", f.ID)
	}
	if f.OwnerID != nil {
		if _, ok := tx.state.users[*f.OwnerID]; !ok {
			return Field{}, fmt.Errorf("user %q not found", *f.OwnerID)
		}
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.fields[f.ID] = cloneField(f)
	tx.recordChange(Change{Entity: domain.EntityField, Action: domain.ActionCreate, After: cloneField(f)})
	return cloneField(f), nil
}

// UpdateField mutates an existing field.
func (tx *transaction) UpdateField(id string, mutator func(*Field) error) (Field, error) {
	current, ok := tx.state.fields[id]
	if !ok {
		return Field{}, fmt.Errorf("field %q not found", id)
	}
	before := cloneField(current)
	if err := mutator(&current); err != nil {
		return Field{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.fields[id] = cloneField(current)
	tx.recordChange(Change{Entity: domain.EntityField, Action: domain.ActionUpdate, Before: before, After: cloneField(current)})
	return cloneField(current), nil
}

// DeleteField removes a field, deletes its treatments and detaches its cultivations.
func (tx *transaction) DeleteField(id string) error {
	current, ok := tx.state.fields[id]
	if !ok {
		return fmt.Errorf("field %q not found", id)
	}
	for _, tid := range sortedKeys(tx.state.treatments) {
		treatment := tx.state.treatments[tid]
		if treatment.FieldID != id {
			continue
		}
		delete(tx.state.treatments, tid)
		tx.recordChange(Change{Entity: domain.EntityTreatment, Action: domain.ActionDelete, Before: cloneTreatment(treatment)})
	}
	for _, cid := range sortedKeys(tx.state.cultivations) {
		cultivation := tx.state.cultivations[cid]
		if !sameRef(cultivation.FieldID, id) {
			continue
		}
		before := cloneCultivation(cultivation)
		cultivation.FieldID = nil
		cultivation.UpdatedAt = tx.now
		tx.state.cultivations[cid] = cultivation
		tx.recordChange(Change{Entity: domain.EntityCultivation, Action: domain.ActionUpdate, Before: before, After: cloneCultivation(cultivation)})
	}
	delete(tx.state.fields, id)
	tx.recordChange(Change{Entity: domain.EntityField, Action: domain.ActionDelete, Before: cloneField(current)})
	return nil
}

// CreateCultivation stores a new cultivation.
func (tx *transaction) CreateCultivation(c Cultivation) (Cultivation, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if _, exists := tx.state.cultivations[c.ID]; exists {
		return Cultivation{}, fmt.Errorf("cultivation %q already exists", c.ID)
	}
	if c.FieldID != nil {
		if _, ok := tx.state.fields[*c.FieldID]; !ok {
			return Cultivation{}, fmt.Errorf("field %q not found", *c.FieldID)
		}
	}
	if c.CropTypeID != nil {
		if _, ok := tx.state.cropTypes[*c.CropTypeID]; !ok {
			return Cultivation{}, fmt.Errorf("crop type %q not found", *c.CropTypeID)
		}
	}
	if c.Status == "" {
		c.Status = domain.CultivationInProgress
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.cultivations[c.ID] = cloneCultivation(c)
	tx.recordChange(Change{Entity: domain.EntityCultivation, Action: domain.ActionCreate, After: cloneCultivation(c)})
	return cloneCultivation(c), nil
}

// UpdateCultivation mutates an existing cultivation. The slug is fixed at creation.
func (tx *transaction) UpdateCultivation(id string, mutator func(*Cultivation) error) (Cultivation, error) {
	current, ok := tx.state.cultivations[id]
	if !ok {
		return Cultivation{}, fmt.Errorf("cultivation %q not found", id)
	}
	before := cloneCultivation(current)
	if err := mutator(&current); err != nil {
		return Cultivation{}, err
	}
	current.ID = id
	current.Slug = before.Slug
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.cultivations[id] = cloneCultivation(current)
	tx.recordChange(Change{Entity: domain.EntityCultivation, Action: domain.ActionUpdate, Before: before, After: cloneCultivation(current)})
	return cloneCultivation(current), nil
}

// CreateTreatment stores a treatment record.
func (tx *transaction) CreateTreatment(t Treatment) (Treatment, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if _, exists := tx.state.treatments[t.ID]; exists {
		return Treatment{}, fmt.Errorf("treatment %q already exists", t.ID)
	}
	if _, ok := tx.state.fields[t.FieldID]; !ok {
		return Treatment{}, fmt.Errorf("field %q not found", t.FieldID)
	}
	if t.CropTypeID != nil {
		if _, ok := tx.state.cropTypes[*t.CropTypeID]; !ok {
			return Treatment{}, fmt.Errorf("crop type %q not found", *t.CropTypeID)
		}
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.treatments[t.ID] = cloneTreatment(t)
	tx.recordChange(Change{Entity: domain.EntityTreatment, Action: domain.ActionCreate, After: cloneTreatment(t)})
	return cloneTreatment(t), nil
}

// UpdateTreatment mutates a treatment.
func (tx *transaction) UpdateTreatment(id string, mutator func(*Treatment) error) (Treatment, error) {
	current, ok := tx.state.treatments[id]
	if !ok {
		return Treatment{}, fmt.Errorf("treatment %q not found", id)
	}
	before := cloneTreatment(current)
	if err := mutator(&current); err != nil {
		return Treatment{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.treatments[id] = cloneTreatment(current)
	tx.recordChange(Change{Entity: domain.EntityTreatment, Action: domain.ActionUpdate, Before: before, After: cloneTreatment(current)})
	return cloneTreatment(current), nil
}

// FindUser exposes user lookup within the transaction scope.
func (tx *transaction) FindUser(id string) (User, bool) {
	return tx.Snapshot().FindUser(id)
}

// FindUserByEmail exposes email lookup within the transaction scope.
func (tx *transaction) FindUserByEmail(email string) (User, bool) {
	return tx.Snapshot().FindUserByEmail(email)
}

// FindCropType exposes crop type lookup within the transaction scope.
func (tx *transaction) FindCropType(id string) (CropType, bool) {
	return tx.Snapshot().FindCropType(id)
}

// FindField exposes field lookup within the transaction scope.
func (tx *transaction) FindField(id string) (Field, bool) {
	return tx.Snapshot().FindField(id)
}

// FindCultivation exposes cultivation lookup within the transaction scope.
func (tx *transaction) FindCultivation(id string) (Cultivation, bool) {
	return tx.Snapshot().FindCultivation(id)
}

// FindCultivationBySlug exposes slug lookup within the transaction scope.
func (tx *transaction) FindCultivationBySlug(slug string) (Cultivation, bool) {
	return tx.Snapshot().FindCultivationBySlug(slug)
}

// FindSeason exposes season lookup within the transaction scope.
func (tx *transaction) FindSeason(fieldID, cropTypeID string, year int) (Cultivation, bool) {
	return tx.Snapshot().FindSeason(fieldID, cropTypeID, year)
}

// ListUsers returns all users ordered by email.
func (v transactionView) ListUsers() []User {
	out := make([]User, 0, len(v.state.users))
	for _, u := range v.state.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// ListCropTypes returns all crop types ordered by name.
func (v transactionView) ListCropTypes() []CropType {
	out := make([]CropType, 0, len(v.state.cropTypes))
	for _, c := range v.state.cropTypes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListFields returns all fields ordered by name.
func (v transactionView) ListFields() []Field {
	out := make([]Field, 0, len(v.state.fields))
	for _, f := range v.state.fields {
		out = append(out, cloneField(f))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListCultivations returns all cultivations, newest season first.
func (v transactionView) ListCultivations() []Cultivation {
	out := make([]Cultivation, 0, len(v.state.cultivations))
	for _, c := range v.state.cultivations {
		out = append(out, cloneCultivation(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListTreatments returns all treatments, most recent date first.
func (v transactionView) ListTreatments() []Treatment {
	out := make([]Treatment, 0, len(v.state.treatments))
	for _, t := range v.state.treatments {
		out = append(out, cloneTreatment(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindUser retrieves a user by ID from the snapshot.
func (v transactionView) FindUser(id string) (User, bool) {
	u, ok := v.state.users[id]
	return u, ok
}

// FindUserByEmail retrieves a user by case-insensitive email.
func (v transactionView) FindUserByEmail(email string) (User, bool) {
	for _, u := range v.state.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}

// FindCropType retrieves a crop type by ID from the snapshot.
func (v transactionView) FindCropType(id string) (CropType, bool) {
	c, ok := v.state.cropTypes[id]
	return c, ok
}

// FindField retrieves a field by ID from the snapshot.
func (v transactionView) FindField(id string) (Field, bool) {
	f, ok := v.state.fields[id]
	if !ok {
		return Field{}, false
	}
	return cloneField(f), true
}

// FindCultivation retrieves a cultivation by ID from the snapshot.
func (v transactionView) FindCultivation(id string) (Cultivation, bool) {
	c, ok := v.state.cultivations[id]
	if !ok {
		return Cultivation{}, false
	}
	return cloneCultivation(c), true
}

// FindCultivationBySlug retrieves a cultivation by slug.
func (v transactionView) FindCultivationBySlug(slug string) (Cultivation, bool) {
	for _, c := range v.state.cultivations {
		if c.Slug == slug {
			return cloneCultivation(c), true
		}
	}
	return Cultivation{}, false
}

// FindSeason retrieves the cultivation for a field, crop type and year.
func (v transactionView) FindSeason(fieldID, cropTypeID string, year int) (Cultivation, bool) {
	for _, id := range sortedKeys(v.state.cultivations) {
		c := v.state.cultivations[id]
		if c.Year == year && sameRef(c.FieldID, fieldID) && sameRef(c.CropTypeID, cropTypeID) {
			return cloneCultivation(c), true
		}
	}
	return Cultivation{}, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
