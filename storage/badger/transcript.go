package badger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/storage"
)

// maxThreadDepth bounds Thread walks so a corrupt link cycle cannot loop forever.
const maxThreadDepth = 1000

// TranscriptRepository implements storage.TranscriptStore for BadgerDB.
type TranscriptRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.TranscriptStore = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository(backend *Backend) (*TranscriptRepository, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &TranscriptRepository{
		backend: backend,
		logger:  slog.Default().With("component", "transcript-repository"),
	}, nil
}

// Append stores a message together with its date index entry.
func (r *TranscriptRepository) Append(ctx context.Context, msg *core.ConversationMessage) error {
	if err := core.ValidateMessage(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeMessageKey(msg.MessageID)
		existing, err := getValue(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: message %s", storage.ErrDuplicateMessage, msg.MessageID)
		}

		if err := tx.Set(key, storage.MarshalMessage(msg)); err != nil {
			return err
		}
		dateKey := makeMessageDateKey(msg.Time(), msg.MessageID)
		if err := tx.Set(dateKey, []byte(msg.MessageID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetMessage retrieves a single message by ID.
func (r *TranscriptRepository) GetMessage(ctx context.Context, id string) (*core.ConversationMessage, error) {
	var result *core.ConversationMessage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readMessage(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// Thread walks PreviousMessageID links back from id and returns the
// conversation oldest first. The walk stops at the first message whose
// predecessor is unknown.
func (r *TranscriptRepository) Thread(ctx context.Context, id string) ([]*core.ConversationMessage, error) {
	var thread []*core.ConversationMessage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		seen := make(map[string]bool)
		next := id
		for next != "" && !seen[next] && len(thread) < maxThreadDepth {
			if err := ctx.Err(); err != nil {
				return err
			}
			seen[next] = true
			msg, err := r.readMessage(tx, next)
			if err != nil {
				return err
			}
			if msg == nil {
				break
			}
			thread = append(thread, msg)
			next = msg.PreviousMessageID
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if len(thread) == 0 {
		return nil, storage.ErrNotFound
	}

	for i, j := 0, len(thread)-1; i < j; i, j = i+1, j-1 {
		thread[i], thread[j] = thread[j], thread[i]
	}
	return thread, nil
}

// Recent retrieves up to limit messages, most recent first.
func (r *TranscriptRepository) Recent(ctx context.Context, limit int) ([]*core.ConversationMessage, error) {
	var results []*core.ConversationMessage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent messages first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := makePartialMessageDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		prefix := []byte(messageDatePrefix + ":")

		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			if !bytes.HasPrefix(iter.Item().Key(), prefix) {
				break
			}

			id, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			msg, err := r.readMessage(tx, string(id))
			if err != nil {
				return err
			}
			if msg != nil {
				results = append(results, msg)
			}
		}
		return nil
	}, false)
	return results, err
}

// readMessage reads a message from the transaction.
// Returns nil, nil if it doesn't exist.
func (r *TranscriptRepository) readMessage(tx *badger.Txn, id string) (*core.ConversationMessage, error) {
	val, err := getValue(tx, makeMessageKey(id))
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalMessage(val)
}
