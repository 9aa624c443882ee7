package cache

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/admincache/internal/model"
)

// ErrUnknownResource is returned for operations on a resource that is not
// registered.
var ErrUnknownResource = errors.New("unknown resource")

// DefaultSideCacheSize bounds the one-to-many, possible-values and cached
// list request caches.
const DefaultSideCacheSize = 1024

// Resource is the cached state of one registered resource.
type Resource struct {
	Definition model.ResourceDefinition
	Data       *RecordStore
	List       *ListState
	Selection  *Selection
}

func newResource(def model.ResourceDefinition) *Resource {
	return &Resource{
		Definition: def,
		Data:       NewRecordStore(),
		List:       NewListState(def.ListDefaults()),
		Selection:  NewSelection(),
	}
}

// OneToManyEntry is the result of a GET_MANY_REFERENCE for one join key.
type OneToManyEntry struct {
	IDs       []model.ID `json:"ids"`
	Total     int        `json:"total"`
	FetchedAt int64      `json:"fetchedAt"`
}

// PossibleValuesEntry is the candidate id list of a reference input, or the
// error of its last matching query.
type PossibleValuesEntry struct {
	IDs []model.ID `json:"ids"`
	Err error      `json:"-"`
}

// State is the application-state container. Pass it by reference to every
// consumer; there is no package-level instance.
type State struct {
	mu            sync.RWMutex
	resources     map[string]*Resource
	order         []string
	oneToMany     *lru.Cache[string, OneToManyEntry]
	possible      *lru.Cache[string, PossibleValuesEntry]
	requests      *lru.Cache[string, CachedRequest]
	notifications []Notification
	loading       int
	retention     int64
}

// Option configures a State.
type Option func(*State)

// WithListRetention keeps ids of earlier accumulation batches for the given
// number of clock ticks. The default of zero keeps only the ids confirmed
// by the latest batch.
func WithListRetention(ticks int64) Option {
	return func(s *State) {
		s.retention = ticks
	}
}

// New creates an empty State whose side caches hold at most sideCacheSize
// keys each.
func New(sideCacheSize int, opts ...Option) (*State, error) {
	if sideCacheSize <= 0 {
		sideCacheSize = DefaultSideCacheSize
	}
	oneToMany, err := lru.New[string, OneToManyEntry](sideCacheSize)
	if err != nil {
		return nil, fmt.Errorf("one-to-many cache: %w", err)
	}
	possible, err := lru.New[string, PossibleValuesEntry](sideCacheSize)
	if err != nil {
		return nil, fmt.Errorf("possible values cache: %w", err)
	}
	requests, err := lru.New[string, CachedRequest](sideCacheSize)
	if err != nil {
		return nil, fmt.Errorf("list request cache: %w", err)
	}
	s := &State{
		resources: make(map[string]*Resource),
		oneToMany: oneToMany,
		possible:  possible,
		requests:  requests,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *State) resource(name string) (*Resource, error) {
	r, ok := s.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return r, nil
}

// Register adds a resource. Registering a name that already exists replaces
// its definition and keeps its cached data.
func (s *State) Register(def model.ResourceDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.resources[def.Name]; ok {
		r.Definition = def
		return
	}
	s.resources[def.Name] = newResource(def)
	s.order = append(s.order, def.Name)
}

// Unregister drops a resource and everything cached for it.
func (s *State) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[name]; !ok {
		return
	}
	delete(s.resources, name)
	s.dropRequests(name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// dropRequests forgets the cached GET_LIST results of a resource.
func (s *State) dropRequests(resource string) {
	for _, key := range s.requests.Keys() {
		if c, ok := s.requests.Peek(key); ok && c.Resource == resource {
			s.requests.Remove(key)
		}
	}
}

// Clear drops every cached record, list, selection, side-cache entry and
// notification while keeping the registered definitions.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, r := range s.resources {
		s.resources[name] = newResource(r.Definition)
	}
	s.oneToMany.Purge()
	s.possible.Purge()
	s.requests.Purge()
	s.notifications = nil
}

// Resources returns the registered resource names in registration order.
func (s *State) Resources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Definition returns the definition of a registered resource.
func (s *State) Definition(name string) (model.ResourceDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[name]
	if !ok {
		return model.ResourceDefinition{}, false
	}
	return r.Definition, true
}

// Merge upserts records into the resource's record store.
func (s *State) Merge(resource string, records []model.Record, now int64) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return nil, err
	}
	return r.Data.Merge(records, now), nil
}

// RequestList marks the list as loading with the given params. When the
// signature has a cached GET_LIST result, its ids and total become visible
// right away; otherwise the previous ids and total stay.
func (s *State) RequestList(resource string, params model.ListParams, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.List.Params = cloneParams(params)
	if c, ok := s.requests.Get(signature); ok && c.Resource == resource {
		r.List.restore(c)
	}
	r.List.begin()
	return nil
}

// ListSuccess is the committed outcome of a list-shaped fetch.
type ListSuccess struct {
	Verb      model.Verb
	Signature string
	Records   []model.Record
	IDs       []model.ID
	Total     int
	Now       int64
}

// ApplyListSuccess merges the records and updates the list ids. A GET_LIST
// replaces ids wholesale; GET_MANY and GET_MANY_REFERENCE accumulate.
func (s *State) ApplyListSuccess(resource string, res ListSuccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.Data.Merge(res.Records, res.Now)

	switch res.Verb {
	case model.GetList:
		r.List.replace(res.IDs, res.Total, res.Now)
		if res.Signature != "" {
			s.requests.Add(res.Signature, CachedRequest{
				Resource:  resource,
				IDs:       append([]model.ID(nil), res.IDs...),
				Total:     res.Total,
				FetchedAt: res.Now,
			})
		}
	case model.GetMany, model.GetManyReference:
		r.List.accumulate(res.IDs, res.Now, s.retention)
	default:
		return fmt.Errorf("verb %s does not update list state", res.Verb)
	}
	return nil
}

// ApplyListFailure ends a list loading cycle. Ids and total are unchanged.
func (s *State) ApplyListFailure(resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.List.fail()
	return nil
}

// ApplyRecordSuccess merges the single record of a GET_ONE, CREATE or UPDATE.
// For CREATE and UPDATE the id is also added to the known list ids and the
// cached list results of the resource are dropped.
func (s *State) ApplyRecordSuccess(resource string, verb model.Verb, rec model.Record, now int64) error {
	id, err := rec.ID()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.Data.Merge([]model.Record{rec}, now)
	if verb == model.Create || verb == model.Update {
		r.List.add(id, now)
		s.dropRequests(resource)
	}
	return nil
}

// ApplyDeleteSuccess removes the record, its list id and its selection, and
// drops the cached list results of the resource.
func (s *State) ApplyDeleteSuccess(resource string, id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.Data.Delete(id)
	r.List.remove(id)
	r.Selection.Remove(id)
	s.dropRequests(resource)
	return nil
}

// ChangeListParams applies a param change, clears a page-mode selection and
// returns the new params.
func (s *State) ChangeListParams(resource string, change ParamChange) (model.ListParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return model.ListParams{}, err
	}
	r.List.Params = ApplyParamChange(r.List.Params, change)
	r.Selection.ParamsChanged()
	return cloneParams(r.List.Params), nil
}

// ChangeSelection selects or deselects ids.
func (s *State) ChangeSelection(resource string, ids []model.ID, selected bool, mode SelectionMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.Selection.Change(ids, selected, mode)
	return nil
}

// ClearSelection empties the selection of a resource.
func (s *State) ClearSelection(resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.Selection.Clear()
	return nil
}

// CompleteBulkAction reconciles the selection after a bulk action.
func (s *State) CompleteBulkAction(resource string, result BulkResult, policy BulkPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.Selection.CompleteBulk(result, policy)
	return nil
}

// ToggleExpand flips the expanded state of a list row.
func (s *State) ToggleExpand(resource string, id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(resource)
	if err != nil {
		return err
	}
	r.List.toggleExpand(id)
	return nil
}

// SetOneToMany stores the ids of a reverse-reference query under its join key.
func (s *State) SetOneToMany(key string, entry OneToManyEntry) {
	s.oneToMany.Add(key, entry)
}

// SetPossibleValues stores the candidate ids of a matching query.
func (s *State) SetPossibleValues(key string, entry PossibleValuesEntry) {
	s.possible.Add(key, entry)
}

// BeginFetch increments the global loading counter.
func (s *State) BeginFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
}

// EndFetch decrements the global loading counter.
func (s *State) EndFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading > 0 {
		s.loading--
	}
}

// Loading returns the number of fetches in flight.
func (s *State) Loading() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// View runs fn with a read lock held, so several reads see one consistent
// state. fn must not call mutating State methods.
func (s *State) View(fn func(v *View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&View{s: s})
}

// GetByID returns one cached record.
func (s *State) GetByID(resource string, id model.ID) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&View{s: s}).GetByID(resource, id)
}

// GetByIDs returns the cached records among ids.
func (s *State) GetByIDs(resource string, ids []model.ID) map[model.ID]model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&View{s: s}).GetByIDs(resource, ids)
}

// OneToMany returns the entry cached under a join key.
func (s *State) OneToMany(key string) (OneToManyEntry, bool) {
	return s.oneToMany.Get(key)
}

// PossibleValues returns the entry cached under a possible-values key.
func (s *State) PossibleValues(key string) (PossibleValuesEntry, bool) {
	return s.possible.Get(key)
}

// List returns a copy of the list state of a resource.
func (s *State) List(resource string) (ListSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&View{s: s}).List(resource)
}

// Selection returns a copy of the selection of a resource.
func (s *State) Selection(resource string) (SelectionSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&View{s: s}).Selection(resource)
}

// View is a read-only window on State, valid inside State.View.
type View struct {
	s *State
}

// GetByID returns one cached record.
func (v *View) GetByID(resource string, id model.ID) (model.Record, bool) {
	r, ok := v.s.resources[resource]
	if !ok {
		return nil, false
	}
	return r.Data.GetByID(id)
}

// GetByIDs returns the cached records among ids; missing ids are dropped.
func (v *View) GetByIDs(resource string, ids []model.ID) map[model.ID]model.Record {
	r, ok := v.s.resources[resource]
	if !ok {
		return map[model.ID]model.Record{}
	}
	return r.Data.GetByIDs(ids)
}

// FetchedAt returns when a record was last confirmed.
func (v *View) FetchedAt(resource string, id model.ID) (int64, bool) {
	r, ok := v.s.resources[resource]
	if !ok {
		return 0, false
	}
	return r.Data.FetchedAt(id)
}

// CachedIDs returns every cached id of a resource in canonical order.
func (v *View) CachedIDs(resource string) []model.ID {
	r, ok := v.s.resources[resource]
	if !ok {
		return nil
	}
	return r.Data.IDs()
}

// OneToMany returns the entry cached under a join key.
func (v *View) OneToMany(key string) (OneToManyEntry, bool) {
	return v.s.oneToMany.Get(key)
}

// PossibleValues returns the entry cached under a possible-values key.
func (v *View) PossibleValues(key string) (PossibleValuesEntry, bool) {
	return v.s.possible.Get(key)
}

// List returns a copy of the list state of a resource.
func (v *View) List(resource string) (ListSnapshot, bool) {
	r, ok := v.s.resources[resource]
	if !ok {
		return ListSnapshot{}, false
	}
	return r.List.snapshot(), true
}

// CachedRequest returns the last GET_LIST result for a signature key.
func (v *View) CachedRequest(resource, signature string) (CachedRequest, bool) {
	c, ok := v.s.requests.Peek(signature)
	if !ok || c.Resource != resource {
		return CachedRequest{}, false
	}
	return c, true
}

// Selection returns a copy of the selection of a resource.
func (v *View) Selection(resource string) (SelectionSnapshot, bool) {
	r, ok := v.s.resources[resource]
	if !ok {
		return SelectionSnapshot{}, false
	}
	return r.Selection.snapshot(), true
}
