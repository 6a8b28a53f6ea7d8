// Package badgerstore implements chat.Store on an embedded Badger database.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/hay-kot/blindchat/internal/core/chat"
	"github.com/hay-kot/blindchat/internal/store/live"
)

var _ chat.Store = (*Store)(nil)

// Store implements chat.Store on Badger.
//
// Messages live under "msg/{collection}/{unixnano:019d}/{id}" so a reverse
// prefix scan walks them newest first. "idx/{collection}/{id}" maps an ID to
// its data key for deletes.
type Store struct {
	db         *badger.DB
	collection string
	clock      clockwork.Clock
	log        zerolog.Logger
	mu         sync.Mutex // serializes appends so timestamps stay strictly increasing
}

// Open opens (or creates) a database in dir.
func Open(dir, collection string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{log: log})
	return open(opts, collection, log)
}

// OpenInMemory opens a database that lives only in memory.
func OpenInMemory(collection string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{log: log})
	return open(opts, collection, log)
}

func open(opts badger.Options, collection string, log zerolog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Store{
		db:         db,
		collection: collection,
		clock:      clockwork.NewRealClock(),
		log:        log,
	}, nil
}

// WithClock sets the clock used for creation times.
func (s *Store) WithClock(clock clockwork.Clock) *Store {
	s.clock = clock
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) dataPrefix() []byte {
	return []byte("msg/" + s.collection + "/")
}

func (s *Store) dataKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg/%s/%019d/%s", s.collection, at.UnixNano(), id))
}

func (s *Store) indexKey(id string) []byte {
	return []byte("idx/" + s.collection + "/" + id)
}

// Append stores a new message.
func (s *Store) Append(ctx context.Context, draft chat.Draft) (chat.Message, error) {
	if err := draft.Validate(); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var msg chat.Message
	err := s.db.Update(func(txn *badger.Txn) error {
		last, err := s.newestTimestamp(txn)
		if err != nil {
			return err
		}

		msg = draft.Message(uuid.NewString(), chat.NextTimestamp(last, s.clock.Now().UTC()))

		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}

		key := s.dataKey(msg.CreatedAt, msg.ID)
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(s.indexKey(msg.ID), key)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("append message: %w", err)
	}

	return msg, nil
}

// Delete removes a message by ID. Returns chat.ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(s.indexKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return chat.ErrNotFound
			}
			return err
		}

		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(s.indexKey(id))
	})
	if err != nil && !errors.Is(err, chat.ErrNotFound) {
		return fmt.Errorf("delete message: %w", err)
	}
	return err
}

// Subscribe delivers the current window and then a new one on every write to
// the collection.
func (s *Store) Subscribe(ctx context.Context, q chat.Query, fn chat.SnapshotHandler) (chat.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	pump := live.Start(ctx, func(context.Context) ([]chat.Message, error) {
		return s.Last(q)
	}, fn)

	go func() {
		err := s.db.Subscribe(ctx, func(_ *badger.KVList) error {
			pump.Trigger()
			return nil
		}, []pb.Match{{Prefix: s.dataPrefix()}})

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("badger subscription ended")
			pump.Fail(fmt.Errorf("watch collection: %w", err))
		}
	}()

	go func() {
		<-pump.Done()
		cancel()
	}()

	pump.Trigger()
	return &subscription{pump: pump, cancel: cancel}, nil
}

// Last returns the newest q.Limit messages, oldest first.
func (s *Store) Last(q chat.Query) ([]chat.Message, error) {
	var msgs []chat.Message

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := s.dataPrefix()
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(prefix, 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if q.Limit > 0 && len(msgs) == q.Limit {
				break
			}
			var msg chat.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return chat.Window(msgs, q), nil
}

// newestTimestamp reads the creation time encoded in the newest data key.
func (s *Store) newestTimestamp(txn *badger.Txn) (time.Time, error) {
	prefix := s.dataPrefix()
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append(prefix, 0xff))
	if !it.ValidForPrefix(prefix) {
		return time.Time{}, nil
	}

	rest := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
	stamp, _, _ := strings.Cut(rest, "/")
	nanos, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse key timestamp %q: %w", stamp, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

type subscription struct {
	pump   *live.Pump
	cancel context.CancelFunc
}

func (s *subscription) Unsubscribe() {
	s.cancel()
	s.pump.Unsubscribe()
}
