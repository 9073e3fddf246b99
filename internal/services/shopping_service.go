package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"corredo/internal/cache"
	"corredo/internal/core"
	"corredo/internal/live"
	"corredo/internal/log"
)

var ErrInvalidID = errors.New("invalid id")

// View is everything the presentation layer renders, derived from one items
// snapshot, one labels snapshot and the filter state.
type View struct {
	Items   []core.ShoppingItem // visible items, store order
	Filter  core.FilterState
	Budget  core.BudgetSummary // over all items, not only visible ones
	Labels  []core.Label
	Version uint64 // items snapshot sequence
}

// ShoppingService is the filter and aggregation engine. It keeps the filter
// state, recomputes the View on every store emission or filter change and
// validates intents before handing them to the store.
type ShoppingService struct {
	store  *ItemStore
	search *cache.LRUCache[[]core.ShoppingItem]
	logger *log.Logger

	mu      sync.Mutex
	filter  core.FilterState
	items   []core.ShoppingItem
	version uint64
	labels  []core.Label

	view  *live.Subject[View]
	unsub []func()
}

// NewShoppingService subscribes to store. searchCache may be nil.
func NewShoppingService(store *ItemStore, searchCache *cache.LRUCache[[]core.ShoppingItem], logger *log.Logger) *ShoppingService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &ShoppingService{
		store:  store,
		search: searchCache,
		logger: logger.WithComponent(log.ComponentEngine),
		view:   live.NewSubject(View{Items: []core.ShoppingItem{}, Labels: []core.Label{}}),
	}
	s.unsub = append(s.unsub,
		store.ObserveLabels(func(ls []core.Label) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.labels = ls
			s.recomputeLocked()
		}),
		store.ObserveItems(func(items []core.ShoppingItem) {
			_, seq := store.Items()
			s.mu.Lock()
			defer s.mu.Unlock()
			s.items, s.version = items, seq
			s.recomputeLocked()
		}),
	)
	return s
}

// Close detaches the service from the store.
func (s *ShoppingService) Close() {
	for _, fn := range s.unsub {
		fn()
	}
}

func (s *ShoppingService) recomputeLocked() {
	s.view.Publish(View{
		Items:   core.VisibleItems(s.items, s.filter),
		Filter:  s.filter,
		Budget:  core.Summarize(s.items),
		Labels:  s.labels,
		Version: s.version,
	})
}

// View returns the latest derived view.
func (s *ShoppingService) View() View {
	v, _ := s.view.Current()
	return v
}

// Observe calls fn with the current view and every later one. fn runs on
// the goroutine that caused the change and must not call back into s.
func (s *ShoppingService) Observe(fn func(View)) (unsubscribe func()) {
	return s.view.Subscribe(fn)
}

// Watch streams views until ctx is done, dropping intermediate ones a slow
// reader missed.
func (s *ShoppingService) Watch(ctx context.Context) <-chan View {
	return s.view.Watch(ctx)
}

func (s *ShoppingService) Filter() core.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *ShoppingService) updateFilter(fn func(core.FilterState) core.FilterState) core.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = fn(s.filter)
	s.recomputeLocked()
	return s.filter
}

// Filter intents

func (s *ShoppingService) ToggleLabel(name string) core.FilterState {
	return s.updateFilter(func(f core.FilterState) core.FilterState { return f.ToggleLabel(name) })
}

func (s *ShoppingService) ClearLabels() core.FilterState {
	return s.updateFilter(core.FilterState.ClearLabels)
}

func (s *ShoppingService) SetFilterMode(m core.FilterMode) core.FilterState {
	return s.updateFilter(func(f core.FilterState) core.FilterState { return f.WithMode(m) })
}

func (s *ShoppingService) SetShowPurchased(show bool) core.FilterState {
	return s.updateFilter(func(f core.FilterState) core.FilterState { return f.WithShowPurchased(show) })
}

// Item returns the stored item with the given id.
func (s *ShoppingService) Item(ctx context.Context, id int64) (core.ShoppingItem, error) {
	return s.store.GetItem(ctx, id)
}

// AllItems returns every item regardless of the filter.
func (s *ShoppingService) AllItems() []core.ShoppingItem {
	items, _ := s.store.Items()
	return items
}

func (s *ShoppingService) Label(id int64) (core.Label, bool) {
	for _, l := range s.store.Labels() {
		if l.ID == id {
			return l, true
		}
	}
	return core.Label{}, false
}

// Ping reports whether the backing repository is reachable.
func (s *ShoppingService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Budget and analytics

func (s *ShoppingService) Budget() core.BudgetSummary {
	return s.View().Budget
}

// Analytics breaks the current items down per label.
func (s *ShoppingService) Analytics() core.Analytics {
	items, _ := s.store.Items()
	return core.BuildAnalytics(items)
}

// Search returns unpurchased items whose name contains query, ignoring
// case. Results are cached until the next items emission.
func (s *ShoppingService) Search(ctx context.Context, query string) ([]core.ShoppingItem, error) {
	query = strings.TrimSpace(query)
	_, version := s.store.Items()
	key := fmt.Sprintf("%d|%s", version, query)
	if s.search != nil {
		if hit, ok := s.search.Get(key); ok {
			return hit, nil
		}
	}
	items, err := s.store.SearchUnpurchased(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	if s.search != nil {
		s.search.Set(key, items)
	}
	s.logger.DebugContext(ctx, "Search executed", log.FieldQuery, query, "results", len(items))
	return items, nil
}

// Item intents. Validation errors are returned before anything is queued.

// AddItem queues a new unpurchased item. Id, version and purchase details
// of it are ignored.
func (s *ShoppingService) AddItem(it core.ShoppingItem) (*Op, error) {
	it = core.MarkUnpurchased(it)
	it.ID, it.Version = 0, 0
	it.Name = strings.TrimSpace(it.Name)
	if err := it.Validate(); err != nil {
		return nil, err
	}
	return s.store.InsertItem(it), nil
}

// UpdateItem queues a whole-record replacement.
func (s *ShoppingService) UpdateItem(it core.ShoppingItem) (*Op, error) {
	it.Name = strings.TrimSpace(it.Name)
	if it.ID <= 0 {
		return nil, fmt.Errorf("%w: item %d", ErrInvalidID, it.ID)
	}
	if err := it.Validate(); err != nil {
		return nil, err
	}
	return s.store.UpdateItem(it), nil
}

func (s *ShoppingService) DeleteItem(id int64) *Op {
	return s.store.DeleteItem(id)
}

func (s *ShoppingService) DeleteItemRecord(it core.ShoppingItem) *Op {
	return s.store.DeleteItemRecord(it)
}

// MarkPurchased falls back to the estimated price when actual is nil.
func (s *ShoppingService) MarkPurchased(id int64, actual *core.Money) (*Op, error) {
	if actual != nil {
		if err := actual.Validate(); err != nil {
			return nil, err
		}
	}
	return s.store.MarkPurchased(id, actual), nil
}

func (s *ShoppingService) MarkUnpurchased(id int64) *Op {
	return s.store.MarkUnpurchased(id)
}

// Label intents

// AddLabel queues a new label. An empty color picks the next palette entry.
func (s *ShoppingService) AddLabel(l core.Label) (*Op, error) {
	labels := s.store.Labels()
	l.ID = 0
	l.Name = strings.TrimSpace(l.Name)
	if l.Color == "" {
		l.Color = core.DefaultLabelColors[len(labels)%len(core.DefaultLabelColors)]
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if core.LabelNameTaken(labels, l.Name, 0) {
		return nil, core.ErrDuplicateLabel
	}
	return s.store.InsertLabel(l), nil
}

func (s *ShoppingService) UpdateLabel(l core.Label) (*Op, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.ID <= 0 {
		return nil, fmt.Errorf("%w: label %d", ErrInvalidID, l.ID)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if core.LabelNameTaken(s.store.Labels(), l.Name, l.ID) {
		return nil, core.ErrDuplicateLabel
	}
	return s.store.UpdateLabel(l), nil
}

func (s *ShoppingService) DeleteLabel(id int64) *Op {
	return s.store.DeleteLabel(id)
}

func (s *ShoppingService) DeleteLabelRecord(l core.Label) *Op {
	return s.store.DeleteLabelRecord(l)
}
