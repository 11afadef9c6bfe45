// Package badgerstore is the reference ConversationStore adapter, backed
// by an embedded badger database. Production deployments point the
// pipeline at the platform's conversation service instead; this adapter
// serves single-node installs, development and the test suite.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/model"
	"github.com/pairly/messaging-service/internal/service"
)

// Key layout:
//
//	conv/<convID>                          -> Conversation JSON
//	msg/<convID>/<createdAtNano>/<msgID>   -> Message JSON (time-ordered)
//	msgidx/<msgID>                         -> primary msg key (point lookups)
var (
	convPrefix   = []byte("conv/")
	msgPrefix    = []byte("msg/")
	msgIdxPrefix = []byte("msgidx/")
)

var _ service.ConversationStore = (*Store)(nil)

type Store struct {
	db *badger.DB
}

func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func Open(path string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func convKey(id uuid.UUID) []byte {
	return append(convPrefix, []byte(id.String())...)
}

func msgKey(convID uuid.UUID, createdAt time.Time, msgID uuid.UUID) []byte {
	return fmt.Appendf(nil, "msg/%s/%020d/%s", convID, createdAt.UnixNano(), msgID)
}

func msgConvPrefix(convID uuid.UUID) []byte {
	return fmt.Appendf(nil, "msg/%s/", convID)
}

func msgIdxKey(id uuid.UUID) []byte {
	return append(msgIdxPrefix, []byte(id.String())...)
}

func mapErr(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errs.ErrNotFound
	}
	return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
}

func getJSON[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, mapErr(err)
	}
	out := new(T)
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
	}
	return out, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
	}
	return nil
}

// CreateConversation seeds a match. The matching flow that creates
// conversations lives outside this core; the store exposes this for
// provisioning and tests.
func (s *Store) CreateConversation(_ context.Context, conv *model.Conversation) (*model.Conversation, error) {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.Status == "" {
		conv.Status = model.ConversationActive
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, convKey(conv.ID), conv)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Store) FindConversation(_ context.Context, id uuid.UUID) (*model.Conversation, error) {
	var conv *model.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = getJSON[model.Conversation](txn, convKey(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Store) CreateMessage(_ context.Context, msg *model.Message) (*model.Message, error) {
	stored := *msg
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now().UTC()
	stored.IsRead = false
	stored.ReadAt = nil

	key := msgKey(stored.ConversationID, stored.CreatedAt, stored.ID)
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, &stored); err != nil {
			return err
		}
		if err := txn.Set(msgIdxKey(stored.ID), key); err != nil {
			return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *Store) GetMessage(_ context.Context, id uuid.UUID) (*model.Message, error) {
	var msg *model.Message
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(msgIdxKey(id))
		if err != nil {
			return mapErr(err)
		}
		primary, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
		}
		msg, err = getJSON[model.Message](txn, primary)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) GetMessages(_ context.Context, convID uuid.UUID, q service.HistoryQuery) ([]*model.Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var msgs []*model.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := msgConvPrefix(convID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration: seek just past the prefix range, walk backwards.
		for it.Seek(append(bytes.Clone(prefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if len(msgs) >= limit {
				break
			}
			msg := &model.Message{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, msg)
			}); err != nil {
				return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
			}
			if !q.Before.IsZero() && !msg.CreatedAt.Before(q.Before) {
				continue
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Store) MarkMessageRead(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	msg.IsRead = true
	msg.ReadAt = &now

	err = s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, msgKey(msg.ConversationID, msg.CreatedAt, msg.ID), msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) MarkConversationRead(_ context.Context, convID, exceptSenderID uuid.UUID) (int, error) {
	count := 0
	now := time.Now().UTC()

	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := msgConvPrefix(convID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			msg := &model.Message{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, msg)
			}); err != nil {
				return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
			}
			if msg.IsRead || msg.SenderID == exceptSenderID {
				continue
			}
			msg.IsRead = true
			msg.ReadAt = &now
			if err := setJSON(txn, msgKey(msg.ConversationID, msg.CreatedAt, msg.ID), msg); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	convs, err := s.conversationsOf(userID)
	if err != nil {
		return 0, err
	}

	// Per-conversation counts are independent reads; run them in parallel.
	counts := make([]int, len(convs))
	g, _ := errgroup.WithContext(ctx)
	for i, conv := range convs {
		i, conv := i, conv
		g.Go(func() error {
			n, err := s.countUnreadIn(conv.ID, userID)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (s *Store) conversationsOf(userID uuid.UUID) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = convPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(convPrefix); it.ValidForPrefix(convPrefix); it.Next() {
			conv := &model.Conversation{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, conv)
			}); err != nil {
				return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
			}
			if conv.IsActive() && conv.HasParticipant(userID) {
				convs = append(convs, conv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *Store) countUnreadIn(convID, userID uuid.UUID) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := msgConvPrefix(convID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			msg := &model.Message{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, msg)
			}); err != nil {
				return fmt.Errorf("%w: %w", errs.ErrUnavailable, err)
			}
			if !msg.IsRead && msg.SenderID != userID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (s *Store) TouchLastActivity(ctx context.Context, convID uuid.UUID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		conv, err := getJSON[model.Conversation](txn, convKey(convID))
		if err != nil {
			return err
		}
		conv.LastMessageAt = time.Now().UTC()
		return setJSON(txn, convKey(convID), conv)
	})
}
