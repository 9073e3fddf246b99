package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"corredo/internal/core"
	"corredo/internal/events"
	"corredo/internal/live"
	"corredo/internal/log"
	"corredo/internal/storage"
)

var ErrStoreClosed = errors.New("item store is closed")

// Repository is the persistence the item store writes through.
type Repository interface {
	InsertItem(ctx context.Context, it core.ShoppingItem) (int64, error)
	GetItem(ctx context.Context, id int64) (core.ShoppingItem, error)
	ListItems(ctx context.Context) ([]core.ShoppingItem, error)
	SearchUnpurchased(ctx context.Context, query string) ([]core.ShoppingItem, error)
	UpdateItem(ctx context.Context, it core.ShoppingItem) error
	DeleteItem(ctx context.Context, id int64) error
	DeleteItemRecord(ctx context.Context, it core.ShoppingItem) error

	InsertLabel(ctx context.Context, l core.Label) (int64, error)
	ListLabels(ctx context.Context) ([]core.Label, error)
	UpdateLabel(ctx context.Context, l core.Label) error
	DeleteLabel(ctx context.Context, id int64) error
	DeleteLabelRecord(ctx context.Context, l core.Label) error

	Ping(ctx context.Context) error
}

// Result is the outcome of one queued mutation. ID is the affected record,
// or zero when the mutation turned out to be a no-op.
type Result struct {
	ID  int64
	Err error
}

// Op is a handle on a queued mutation.
type Op struct {
	done chan struct{}
	res  Result
}

func newOp() *Op {
	return &Op{done: make(chan struct{})}
}

func (o *Op) complete(r Result) {
	o.res = r
	close(o.done)
}

// Done is closed once the mutation has been committed or has failed.
func (o *Op) Done() <-chan struct{} { return o.done }

// Wait blocks until the mutation finishes or ctx is done. Abandoning the
// wait does not cancel the mutation.
func (o *Op) Wait(ctx context.Context) Result {
	select {
	case <-o.done:
		return o.res
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// change describes what a committed mutation touched.
type change struct {
	id      int64
	event   events.Type
	labels  bool
	skipped bool
}

type command struct {
	op   string
	run  func(ctx context.Context) (change, error)
	done *Op
}

// ItemStore owns the item and label collections. Mutations are queued and
// applied one at a time by Run; after each committed mutation the fresh
// collections are pushed to subscribers and an item event is published.
type ItemStore struct {
	repo      Repository
	publisher events.Publisher
	logger    *log.Logger
	now       func() time.Time

	items  *live.Subject[[]core.ShoppingItem]
	labels *live.Subject[[]core.Label]

	mu     sync.Mutex
	queue  []command
	closed bool
	wake   chan struct{}
}

func NewItemStore(repo Repository, publisher events.Publisher, logger *log.Logger) *ItemStore {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ItemStore{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentStore),
		now:       time.Now,
		items:     live.NewSubject([]core.ShoppingItem{}),
		labels:    live.NewSubject([]core.Label{}),
		wake:      make(chan struct{}, 1),
	}
}

// Load reads both collections and emits them as the initial snapshots.
func (s *ItemStore) Load(ctx context.Context) error {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	labels, err := s.repo.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	s.labels.Publish(labels)
	s.items.Publish(items)
	s.logger.InfoContext(ctx, "Store loaded", "items", len(items), "labels", len(labels))
	return nil
}

// Run applies queued mutations until ctx is done. Mutations still queued
// at that point fail with ErrStoreClosed.
func (s *ItemStore) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Store writer started")
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.logger.Info("Store writer stopped")
			return nil
		case <-s.wake:
		}
		for {
			cmd, ok := s.next()
			if !ok {
				break
			}
			s.apply(ctx, cmd)
		}
	}
}

func (s *ItemStore) next() (command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return command{}, false
	}
	cmd := s.queue[0]
	s.queue = s.queue[1:]
	return cmd, true
}

func (s *ItemStore) shutdown() {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.closed = true
	s.mu.Unlock()
	for _, cmd := range pending {
		cmd.done.complete(Result{Err: ErrStoreClosed})
	}
}

// submit queues a mutation without blocking the caller.
func (s *ItemStore) submit(op string, run func(ctx context.Context) (change, error)) *Op {
	o := newOp()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		o.complete(Result{Err: ErrStoreClosed})
		return o
	}
	s.queue = append(s.queue, command{op: op, run: run, done: o})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return o
}

func (s *ItemStore) apply(ctx context.Context, cmd command) {
	start := time.Now()
	ch, err := cmd.run(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Mutation failed", log.FieldOperation, cmd.op, log.FieldError, err)
		cmd.done.complete(Result{Err: err})
		return
	}
	if ch.skipped {
		s.logger.DebugContext(ctx, "Mutation skipped, record not found", log.FieldOperation, cmd.op)
		cmd.done.complete(Result{})
		return
	}

	if err := s.refresh(ctx, ch.labels); err != nil {
		// The write is committed; the next successful refresh catches up.
		s.logger.ErrorContext(ctx, "Failed to refresh snapshots", log.FieldOperation, cmd.op, log.FieldError, err)
	}
	s.publish(ctx, ch)

	s.logger.DebugContext(ctx, "Mutation applied",
		log.FieldOperation, cmd.op,
		log.FieldItemID, ch.id,
		log.FieldDuration, time.Since(start).Milliseconds())
	cmd.done.complete(Result{ID: ch.id})
}

// refresh re-reads the collections touched by a mutation. Label changes
// also rewrite item label sets, so items are always re-read.
func (s *ItemStore) refresh(ctx context.Context, labels bool) error {
	if labels {
		ls, err := s.repo.ListLabels(ctx)
		if err != nil {
			return fmt.Errorf("list labels: %w", err)
		}
		s.labels.Publish(ls)
	}
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	s.items.Publish(items)
	return nil
}

// publish ships the change event. Broker failures never fail a mutation.
func (s *ItemStore) publish(ctx context.Context, ch change) {
	var version int64
	if !ch.labels {
		if it, err := s.repo.GetItem(ctx, ch.id); err == nil {
			version = it.Version
		}
	}
	e := events.NewItemEvent(ch.event, ch.id, version)
	if ch.labels {
		e.ItemID = 0
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish item event",
			log.FieldEventType, e.Type,
			log.FieldItemID, e.ItemID,
			log.FieldError, err)
	}
}

// Reads

// Items returns the latest items snapshot, most recently created first,
// and its sequence number. The slice is shared and must not be modified.
func (s *ItemStore) Items() ([]core.ShoppingItem, uint64) {
	return s.items.Current()
}

// Labels returns the latest labels snapshot ordered by name.
func (s *ItemStore) Labels() []core.Label {
	ls, _ := s.labels.Current()
	return ls
}

// ObserveItems calls fn with the current items and again after every
// committed mutation.
func (s *ItemStore) ObserveItems(fn func([]core.ShoppingItem)) (unsubscribe func()) {
	return s.items.Subscribe(fn)
}

func (s *ItemStore) ObserveLabels(fn func([]core.Label)) (unsubscribe func()) {
	return s.labels.Subscribe(fn)
}

// GetItem reads one item from the repository, or storage.ErrNotFound.
func (s *ItemStore) GetItem(ctx context.Context, id int64) (core.ShoppingItem, error) {
	return s.repo.GetItem(ctx, id)
}

// SearchUnpurchased returns unpurchased items whose name contains query.
func (s *ItemStore) SearchUnpurchased(ctx context.Context, query string) ([]core.ShoppingItem, error) {
	return s.repo.SearchUnpurchased(ctx, query)
}

func (s *ItemStore) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Item mutations

func (s *ItemStore) InsertItem(it core.ShoppingItem) *Op {
	return s.submit(log.OpCreate, func(ctx context.Context) (change, error) {
		id, err := s.repo.InsertItem(ctx, it)
		if err != nil {
			return change{}, err
		}
		return change{id: id, event: events.ItemCreated}, nil
	})
}

// UpdateItem replaces the stored item with the same id. A non-zero
// Version must match the stored one.
func (s *ItemStore) UpdateItem(it core.ShoppingItem) *Op {
	return s.submit(log.OpUpdate, func(ctx context.Context) (change, error) {
		if err := s.repo.UpdateItem(ctx, it); err != nil {
			return change{}, err
		}
		return change{id: it.ID, event: events.ItemUpdated}, nil
	})
}

func (s *ItemStore) DeleteItem(id int64) *Op {
	return s.submit(log.OpDelete, func(ctx context.Context) (change, error) {
		if err := s.repo.DeleteItem(ctx, id); err != nil {
			return change{}, err
		}
		return change{id: id, event: events.ItemDeleted}, nil
	})
}

// DeleteItemRecord deletes it by id, checking its version when set.
func (s *ItemStore) DeleteItemRecord(it core.ShoppingItem) *Op {
	return s.submit(log.OpDelete, func(ctx context.Context) (change, error) {
		if err := s.repo.DeleteItemRecord(ctx, it); err != nil {
			return change{}, err
		}
		return change{id: it.ID, event: events.ItemDeleted}, nil
	})
}

// MarkPurchased sets the item purchased at the given unit price, or at its
// estimated price when actual is nil. Unknown ids are a no-op.
func (s *ItemStore) MarkPurchased(id int64, actual *core.Money) *Op {
	return s.submit(log.OpMarkPurchased, func(ctx context.Context) (change, error) {
		return s.transition(ctx, id, events.ItemPurchased, func(it core.ShoppingItem) core.ShoppingItem {
			return core.MarkPurchased(it, actual, s.now())
		})
	})
}

// MarkUnpurchased clears the purchase details. Unknown ids are a no-op.
func (s *ItemStore) MarkUnpurchased(id int64) *Op {
	return s.submit(log.OpMarkUnpurchase, func(ctx context.Context) (change, error) {
		return s.transition(ctx, id, events.ItemUnpurchased, core.MarkUnpurchased)
	})
}

// transition is a read-modify-write on the writer goroutine.
func (s *ItemStore) transition(ctx context.Context, id int64, event events.Type, fn func(core.ShoppingItem) core.ShoppingItem) (change, error) {
	it, err := s.repo.GetItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return change{skipped: true}, nil
	}
	if err != nil {
		return change{}, err
	}
	if err := s.repo.UpdateItem(ctx, fn(it)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return change{skipped: true}, nil
		}
		return change{}, err
	}
	return change{id: id, event: event}, nil
}

// Label mutations

func (s *ItemStore) InsertLabel(l core.Label) *Op {
	return s.submit(log.OpCreate, func(ctx context.Context) (change, error) {
		id, err := s.repo.InsertLabel(ctx, l)
		if err != nil {
			return change{}, err
		}
		return change{id: id, event: events.LabelChanged, labels: true}, nil
	})
}

// UpdateLabel replaces the label with the same id; a rename carries over to
// every item using the old name.
func (s *ItemStore) UpdateLabel(l core.Label) *Op {
	return s.submit(log.OpUpdate, func(ctx context.Context) (change, error) {
		if err := s.repo.UpdateLabel(ctx, l); err != nil {
			return change{}, err
		}
		return change{id: l.ID, event: events.LabelChanged, labels: true}, nil
	})
}

func (s *ItemStore) DeleteLabel(id int64) *Op {
	return s.submit(log.OpDelete, func(ctx context.Context) (change, error) {
		if err := s.repo.DeleteLabel(ctx, id); err != nil {
			return change{}, err
		}
		return change{id: id, event: events.LabelChanged, labels: true}, nil
	})
}

func (s *ItemStore) DeleteLabelRecord(l core.Label) *Op {
	return s.submit(log.OpDelete, func(ctx context.Context) (change, error) {
		if err := s.repo.DeleteLabelRecord(ctx, l); err != nil {
			return change{}, err
		}
		return change{id: l.ID, event: events.LabelChanged, labels: true}, nil
	})
}
