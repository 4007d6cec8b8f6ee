package repositories

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chathub/errors"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, slog.Default())
}

func TestStore_Create_And_Get_Record(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	// When a record is created
	req.NoError(store.CreateRecord("demo", "a", payload{Name: "first", Count: 1}))

	// Then it reads back identically
	var got payload
	req.NoError(store.GetRecord("demo", "a", &got))
	req.Equal(payload{Name: "first", Count: 1}, got)
}

func TestStore_Get_Missing_Record(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	var got payload
	err := store.GetRecord("demo", "missing", &got)

	req.ErrorIs(err, errors.ErrNotFound)
}

func TestStore_Query_Walks_Prefix_In_Order(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	// Given records under two distinct prefixes
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("room1:%03d", i)
		req.NoError(store.CreateRecord("demo", key, payload{Count: i}))
	}
	req.NoError(store.CreateRecord("demo", "room2:000", payload{Count: 99}))

	// When walking one prefix forward
	records, _, err := store.Query("demo", "room1:", nil, 0, false)

	// Then only that prefix comes back, lexicographically sorted
	req.NoError(err)
	req.Len(records, 5)
	req.Equal("room1:000", records[0].Key)
	req.Equal("room1:004", records[4].Key)
}

func TestStore_Query_Reverse_With_Cursor(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("room1:%03d", i)
		req.NoError(store.CreateRecord("demo", key, payload{Count: i}))
	}

	// When reading the first reverse page
	first, cursor, err := store.Query("demo", "room1:", nil, 2, true)
	req.NoError(err)
	req.Len(first, 2)
	req.Equal("room1:004", first[0].Key)
	req.Equal("room1:003", first[1].Key)

	// And resuming after the cursor
	second, _, err := store.Query("demo", "room1:", cursor, 2, true)
	req.NoError(err)
	req.Len(second, 2)
	req.Equal("room1:002", second[0].Key)
	req.Equal("room1:001", second[1].Key)
}

func TestStore_TransactionalUpdate_Mutates_Existing(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	req.NoError(store.CreateRecord("demo", "a", payload{Name: "first", Count: 1}))

	// When a compare-and-swap mutation increments the counter
	err := store.TransactionalUpdate("demo", "a", func(current []byte) (any, error) {
		req.NotNil(current)
		return payload{Name: "first", Count: 2}, nil
	})
	req.NoError(err)

	var got payload
	req.NoError(store.GetRecord("demo", "a", &got))
	req.Equal(2, got.Count)
}

func TestStore_TransactionalUpdate_Preserves_Domain_Sentinels(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	// When the mutate callback refuses with a domain error
	err := store.TransactionalUpdate("demo", "missing", func(current []byte) (any, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: no such record", errors.ErrNotFound)
		}
		return nil, nil
	})

	// Then the sentinel survives, not wrapped as a persistence failure
	req.ErrorIs(err, errors.ErrNotFound)
	req.NotErrorIs(err, errors.ErrPersistence)
}
