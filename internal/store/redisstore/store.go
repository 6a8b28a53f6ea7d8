// Package redisstore implements chat.Store on Redis so several clients can
// share one conversation.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hay-kot/blindchat/internal/core/chat"
	"github.com/hay-kot/blindchat/internal/store/live"
)

const maxAppendAttempts = 5

var _ chat.Store = (*Store)(nil)

// Store keeps a collection in three keys:
//
//	blindchat:{collection}:timeline  sorted set of IDs scored by creation time (µs)
//	blindchat:{collection}:messages  hash of ID to JSON record
//	blindchat:{collection}:changes   pub/sub channel announcing writes
type Store struct {
	client     *redis.Client
	collection string
	log        zerolog.Logger
}

// Connect parses a redis:// URL, connects, and checks the server answers.
func Connect(ctx context.Context, url, collection string, log zerolog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return New(client, collection, log), nil
}

// New wraps an existing client.
func New(client *redis.Client, collection string, log zerolog.Logger) *Store {
	return &Store{client: client, collection: collection, log: log}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) timelineKey() string { return "blindchat:" + s.collection + ":timeline" }
func (s *Store) messagesKey() string { return "blindchat:" + s.collection + ":messages" }
func (s *Store) channel() string     { return "blindchat:" + s.collection + ":changes" }

// Append stores a new message stamped with the server's clock. Concurrent
// appends from other clients are retried so creation times stay strictly
// increasing within the collection.
func (s *Store) Append(ctx context.Context, draft chat.Draft) (chat.Message, error) {
	if err := draft.Validate(); err != nil {
		return chat.Message{}, err
	}

	id := uuid.NewString()
	var msg chat.Message

	txf := func(tx *redis.Tx) error {
		now, err := tx.Time(ctx).Result()
		if err != nil {
			return fmt.Errorf("server time: %w", err)
		}

		newest, err := tx.ZRevRangeWithScores(ctx, s.timelineKey(), 0, 0).Result()
		if err != nil {
			return err
		}

		at := now.UTC().Truncate(time.Microsecond)
		if len(newest) > 0 {
			last := time.UnixMicro(int64(newest[0].Score)).UTC()
			if !at.After(last) {
				at = last.Add(time.Microsecond)
			}
		}

		msg = draft.Message(id, at)
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.messagesKey(), id, data)
			pipe.ZAdd(ctx, s.timelineKey(), redis.Z{Score: float64(at.UnixMicro()), Member: id})
			pipe.Publish(ctx, s.channel(), id)
			return nil
		})
		return err
	}

	for range maxAppendAttempts {
		err := s.client.Watch(ctx, txf, s.timelineKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return chat.Message{}, fmt.Errorf("append message: %w", err)
		}
		return msg, nil
	}

	return chat.Message{}, fmt.Errorf("append message: %w", redis.TxFailedErr)
}

// Delete removes a message by ID. Returns chat.ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.timelineKey(), id)
		pipe.HDel(ctx, s.messagesKey(), id)
		pipe.Publish(ctx, s.channel(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if removed.Val() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// Last returns the newest q.Limit messages, oldest first.
func (s *Store) Last(ctx context.Context, q chat.Query) ([]chat.Message, error) {
	stop := int64(-1)
	if q.Limit > 0 {
		stop = int64(q.Limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, s.timelineKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	if len(ids) == 0 {
		return []chat.Message{}, nil
	}

	values, err := s.client.HMGet(ctx, s.messagesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	msgs := make([]chat.Message, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Removed between the two reads.
			s.log.Debug().Str("id", ids[i]).Msg("timeline entry without record")
			continue
		}

		var msg chat.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", ids[i], err)
		}
		msgs = append(msgs, msg)
	}

	return chat.Window(msgs, q), nil
}

// Subscribe listens on the collection's change channel and delivers a fresh
// window for every announced write. The channel subscription is confirmed
// before the first load so no write after Subscribe returns is missed.
func (s *Store) Subscribe(ctx context.Context, q chat.Query, fn chat.SnapshotHandler) (chat.Subscription, error) {
	ps := s.client.Subscribe(ctx, s.channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel(), err)
	}

	pump := live.Start(ctx, func(ctx context.Context) ([]chat.Message, error) {
		return s.Last(ctx, q)
	}, fn)

	go func() {
		defer func() { _ = ps.Close() }()

		ch := ps.Channel()
		for {
			select {
			case <-pump.Done():
				return
			case _, ok := <-ch:
				if !ok {
					s.log.Warn().Str("channel", s.channel()).Msg("redis channel closed")
					pump.Fail(errors.New("redis change channel closed"))
					return
				}
				pump.Trigger()
			}
		}
	}()

	pump.Trigger()
	return pump, nil
}
