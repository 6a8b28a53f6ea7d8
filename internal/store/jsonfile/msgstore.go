package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/hay-kot/blindchat/internal/core/chat"
)

const (
	defaultMaxMessages  = 1000
	defaultPollInterval = 500 * time.Millisecond
)

// collectionFile is the on-disk layout of a collection. Revision increases on
// every write so pollers can tell whether anything changed.
type collectionFile struct {
	Name      string         `json:"name"`
	Revision  uint64         `json:"revision"`
	Messages  []chat.Message `json:"messages"`
	UpdatedAt time.Time      `json:"updated_at"`
}

var _ chat.Store = (*MsgStore)(nil)

// MsgStore implements chat.Store with one JSON file per collection. Writers
// in other processes are coordinated with flock, and subscriptions poll the
// file revision.
type MsgStore struct {
	dir          string
	collection   string
	maxMessages  int
	pollInterval time.Duration
	clock        clockwork.Clock
	mu           sync.RWMutex
}

// NewMsgStore creates a message store for collection in dir.
func NewMsgStore(dir, collection string) *MsgStore {
	return &MsgStore{
		dir:          dir,
		collection:   collection,
		maxMessages:  defaultMaxMessages,
		pollInterval: defaultPollInterval,
		clock:        clockwork.NewRealClock(),
	}
}

// WithMaxMessages sets the maximum number of messages retained in the collection.
func (s *MsgStore) WithMaxMessages(max int) *MsgStore {
	if max > 0 {
		s.maxMessages = max
	}
	return s
}

// WithPollInterval sets how often subscriptions check for changes.
func (s *MsgStore) WithPollInterval(d time.Duration) *MsgStore {
	if d > 0 {
		s.pollInterval = d
	}
	return s
}

// WithClock sets the clock used for creation times.
func (s *MsgStore) WithClock(clock clockwork.Clock) *MsgStore {
	s.clock = clock
	return s
}

// path returns the file path for the collection.
func (s *MsgStore) path() string {
	safe := strings.ReplaceAll(s.collection, "/", "_")
	return filepath.Join(s.dir, safe+".json")
}

// withSharedLock executes fn while holding a shared (read) file lock.
func (s *MsgStore) withSharedLock(fn func() error) error {
	return s.withFileLock(syscall.LOCK_SH, fn)
}

// withExclusiveLock executes fn while holding an exclusive (write) file lock.
func (s *MsgStore) withExclusiveLock(fn func() error) error {
	return s.withFileLock(syscall.LOCK_EX, fn)
}

func (s *MsgStore) withFileLock(lockType int, fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create messages directory: %w", err)
	}

	f, err := os.OpenFile(s.path()+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), lockType); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

// Append stores a new message with a generated ID and the store's clock time.
func (s *MsgStore) Append(ctx context.Context, draft chat.Draft) (chat.Message, error) {
	if err := draft.Validate(); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var msg chat.Message
	err := s.withExclusiveLock(func() error {
		file, err := s.load()
		if err != nil {
			return err
		}

		var last time.Time
		if n := len(file.Messages); n > 0 {
			last = file.Messages[n-1].CreatedAt
		}
		msg = draft.Message(uuid.NewString(), chat.NextTimestamp(last, s.clock.Now().UTC()))

		file.Messages = append(file.Messages, msg)
		if len(file.Messages) > s.maxMessages {
			file.Messages = file.Messages[len(file.Messages)-s.maxMessages:]
		}

		return s.save(file)
	})
	if err != nil {
		return chat.Message{}, err
	}

	return msg, nil
}

// Delete removes a message by ID. Returns chat.ErrNotFound if it does not exist.
func (s *MsgStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withExclusiveLock(func() error {
		file, err := s.load()
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(file.Messages, func(m chat.Message) bool { return m.ID == id })
		if idx < 0 {
			return chat.ErrNotFound
		}

		file.Messages = slices.Delete(file.Messages, idx, idx+1)
		return s.save(file)
	})
}

// Subscribe delivers the current window immediately and then again whenever
// the collection revision changes. A read error ends the subscription.
func (s *MsgStore) Subscribe(ctx context.Context, q chat.Query, fn chat.SnapshotHandler) (chat.Subscription, error) {
	file, err := s.read()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &pollSubscription{cancel: cancel}

	go func() {
		defer cancel()

		revision := file.Revision
		if ctx.Err() != nil {
			return
		}
		fn(chat.Window(file.Messages, q), nil)

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				file, err := s.read()
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					fn(nil, err)
					return
				}
				if file.Revision == revision {
					continue
				}
				revision = file.Revision
				fn(chat.Window(file.Messages, q), nil)
			}
		}
	}()

	return sub, nil
}

// Len returns the number of messages currently retained.
func (s *MsgStore) Len(ctx context.Context) (int, error) {
	file, err := s.read()
	if err != nil {
		return 0, err
	}
	return len(file.Messages), nil
}

type pollSubscription struct {
	cancel context.CancelFunc
}

func (p *pollSubscription) Unsubscribe() {
	p.cancel()
}

// read loads the collection under a shared lock.
func (s *MsgStore) read() (collectionFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var file collectionFile
	err := s.withSharedLock(func() error {
		var err error
		file, err = s.load()
		return err
	})
	return file, err
}

// load reads the collection file from disk.
// Returns an empty collection if the file doesn't exist.
func (s *MsgStore) load() (collectionFile, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return collectionFile{Name: s.collection}, nil
		}
		return collectionFile{}, fmt.Errorf("read collection file: %w", err)
	}

	if len(data) == 0 {
		return collectionFile{Name: s.collection}, nil
	}

	var file collectionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return collectionFile{}, fmt.Errorf("parse collection file: %w", err)
	}

	return file, nil
}

// save bumps the revision and writes the collection file atomically.
func (s *MsgStore) save(file collectionFile) error {
	file.Name = s.collection
	file.Revision++
	file.UpdatedAt = s.clock.Now().UTC()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	return writeAtomic(s.path(), data, 0o644)
}
