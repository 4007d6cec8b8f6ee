//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"chathub/contract"
	"chathub/errors"
)

// Store is the badger-backed persistence collaborator. Records are JSON
// documents; keys are "{collection}:{key}" so each collection sorts
// lexicographically and can be walked with a prefix scan.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

var _ contract.RecordStore = (*Store)(nil)

func NewStore(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

func fullKey(collection, key string) []byte {
	return []byte(collection + ":" + key)
}

func (s *Store) CreateRecord(collection, key string, record any) error {
	bytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", errors.ErrPersistence, collection, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fullKey(collection, key), bytes)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return nil
}

func (s *Store) GetRecord(collection, key string, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fullKey(collection, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	switch {
	case err == nil:
		return nil
	case err == badger.ErrKeyNotFound:
		return fmt.Errorf("%w: %s:%s", errors.ErrNotFound, collection, key)
	default:
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
}

// Query walks a collection prefix. The returned cursor is the key suffix of
// the last visited record, nil when nothing matched; passing it back resumes
// strictly after it.
// Thanks to zero padded timestamps in the key schemes, records are naturally
// sorted by time.
func (s *Store) Query(collection, prefix string, cursor *string, limit int, reverse bool) ([]contract.Record, *string, error) {
	var records []contract.Record
	var lastKey string

	err := s.db.View(func(txn *badger.Txn) error {
		prefixStr := collection + ":" + prefix
		prefixBytes := []byte(prefixStr)
		prefixLen := len(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = reverse
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			if reverse {
				// Seek past the newest possible key, then walk backwards.
				seekKey = append([]byte(prefixStr), 0xFF)
			} else {
				seekKey = prefixBytes
			}
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefixBytes) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefixBytes); it.Next() {
			if limit > 0 && len(records) == limit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			key := string(item.Key()[len(collection)+1:])
			err := item.Value(func(value []byte) error {
				cp := make([]byte, len(value))
				copy(cp, value)
				records = append(records, contract.Record{Key: key, Value: cp})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if lastKey == "" {
		return records, nil, nil
	}
	return records, &lastKey, nil
}

// TransactionalUpdate applies a compare-and-swap style mutation: the current
// value is read, mutated, and written back inside a single transaction.
// A nil current value means the record does not exist yet.
func (s *Store) TransactionalUpdate(collection, key string, mutate func(current []byte) (any, error)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var current []byte
		item, err := txn.Get(fullKey(collection, key))
		switch {
		case err == nil:
			current, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
		case err == badger.ErrKeyNotFound:
			current = nil
		default:
			return err
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}

		bytes, err := json.Marshal(next)
		if err != nil {
			return err
		}
		return txn.Set(fullKey(collection, key), bytes)
	})
	return wrapStoreErr(err)
}

// wrapStoreErr keeps domain sentinels produced inside a mutate callback
// intact and wraps everything else as a persistence failure.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{errors.ErrNotFound, errors.ErrAccessDenied, errors.ErrUserAlreadyExists} {
		if stderrors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
}
