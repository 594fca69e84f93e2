package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// SchemaVersion is stamped on every record written through Store.
const SchemaVersion = 1

var (
	ErrNotFound      = errors.New("key not found")
	ErrSchemaVersion = errors.New("unsupported record schema version")
)

// Backend is raw byte storage keyed by string.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Change struct {
	Key     string
	Deleted bool
}

type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

type subscriber struct {
	prefix string
	ch     chan Change
}

// Store serializes records as versioned JSON and notifies subscribers of writes.
type Store struct {
	backend Backend

	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		subs:    make(map[int]*subscriber),
	}
}

// Get decodes the record at key into dst. It reports false when the key is absent.
func (s *Store) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := s.backend.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if env.Version != SchemaVersion {
		return false, fmt.Errorf("%s has version %d: %w", key, env.Version, ErrSchemaVersion)
	}

	if err := json.Unmarshal(env.Data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	raw, err := json.Marshal(envelope{Version: SchemaVersion, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := s.backend.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}

	s.notify(Change{Key: key})
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	s.notify(Change{Key: key, Deleted: true})
	return nil
}

// Subscribe returns a channel receiving changes for keys starting with prefix.
// Delivery never blocks writers; a full channel drops the notification.
func (s *Store) Subscribe(prefix string) (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	sub := &subscriber{prefix: prefix, ch: make(chan Change, 16)}
	s.subs[id] = sub

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if !strings.HasPrefix(change.Key, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub.ch)
	}
	s.mu.Unlock()

	return s.backend.Close()
}
