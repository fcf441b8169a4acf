// Package watch turns any storage.Storage into a storage.Reactive store.
//
// Every successful CreateStudent or UpdateStudentByID that goes through the
// wrapper wakes the subscribers of that id, which re-read the record and
// push a new Snapshot. Writes made behind the wrapper's back (another
// process on the same database file) are not observed.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
)

// Store wraps a storage.Storage and fans change notifications out to
// WatchStudent subscribers.
type Store struct {
	storage.Storage

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

var _ storage.Reactive = (*Store)(nil)

// subscriber.wake has room for one pending notification; a burst of writes
// collapses into a single re-read, and the re-read always sees the latest
// row.
type subscriber struct {
	wake chan struct{}
}

// New wraps s.
func New(s storage.Storage) *Store {
	return &Store{
		Storage: s,
		subs:    make(map[string]map[*subscriber]struct{}),
	}
}

// CreateStudent creates through the wrapped store and notifies anyone
// already watching the new id.
func (s *Store) CreateStudent(ctx context.Context, fields types.StudentFields) (string, error) {
	id, err := s.Storage.CreateStudent(ctx, fields)
	if err != nil {
		return "", err
	}
	s.notify(id)
	return id, nil
}

// UpdateStudentByID updates through the wrapped store and notifies the
// watchers of id.
func (s *Store) UpdateStudentByID(ctx context.Context, id string, fields types.StudentFields) error {
	if err := s.Storage.UpdateStudentByID(ctx, id, fields); err != nil {
		return err
	}
	s.notify(id)
	return nil
}

// WatchStudent implements storage.Watcher.
func (s *Store) WatchStudent(ctx context.Context, id string) <-chan storage.Snapshot {
	out := make(chan storage.Snapshot, 1)
	sub := &subscriber{wake: make(chan struct{}, 1)}
	s.subscribe(id, sub)

	go func() {
		defer close(out)
		defer s.unsubscribe(id, sub)

		if !send(ctx, out, storage.Snapshot{Status: storage.StatusPending}) {
			return
		}

		for {
			if !send(ctx, out, s.read(ctx, id)) {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-sub.wake:
			}
		}
	}()

	return out
}

// Watchers returns how many subscriptions are open for id.
func (s *Store) Watchers(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[id])
}

func (s *Store) read(ctx context.Context, id string) storage.Snapshot {
	student, err := s.Storage.GetStudentByID(ctx, id)
	switch {
	case err == nil:
		return storage.Snapshot{Status: storage.StatusFound, Student: student}
	case errors.Is(err, storage.ErrNotFound):
		return storage.Snapshot{Status: storage.StatusNotFound}
	default:
		if ctx.Err() == nil {
			slog.Error("watch: read failed",
				slog.String("id", id),
				slog.String("error", err.Error()))
		}
		return storage.Snapshot{Status: storage.StatusNotFound, Err: err}
	}
}

func (s *Store) subscribe(id string, sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[id]
	if !ok {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	set[sub] = struct{}{}
}

func (s *Store) unsubscribe(id string, sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs[id], sub)
	if len(s.subs[id]) == 0 {
		delete(s.subs, id)
	}
}

func (s *Store) notify(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs[id] {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

func send(ctx context.Context, out chan<- storage.Snapshot, snap storage.Snapshot) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}
