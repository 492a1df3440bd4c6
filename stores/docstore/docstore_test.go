package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := OpenPebbleInMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMergePayload(t *testing.T) {
	merged, err := MergePayload([]byte(`{"a":1,"b":{"x":1}}`), []byte(`{"b":{"y":2},"c":"z"}`))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(merged, &got))
	assert.Equal(t, float64(1), got["a"])
	assert.Equal(t, map[string]interface{}{"y": float64(2)}, got["b"])
	assert.Equal(t, "z", got["c"])

	same, err := MergePayload(nil, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(same))

	_, err = MergePayload([]byte(`[1]`), []byte(`{"a":1}`))
	assert.Error(t, err)
}

func TestPebbleStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "orders/1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "orders/1", []byte(`{"a":1}`), SetOptions{}))
	require.NoError(t, s.Set(ctx, "orders/1", []byte(`{"b":2}`), SetOptions{Merge: true}))

	got, err := s.Get(ctx, "orders/1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(got))

	require.NoError(t, s.Set(ctx, "orders/1", []byte(`{"c":3}`), SetOptions{}))
	got, err = s.Get(ctx, "orders/1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":3}`, string(got))

	require.NoError(t, s.Delete(ctx, "orders/1"))
	_, err = s.Get(ctx, "orders/1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPebbleStoreCommitIsAtomicMove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "book/active/a", []byte(`{"id":"a"}`), SetOptions{}))
	require.NoError(t, s.Commit(ctx, []Write{
		DeleteWrite("book/active/a"),
		SetWrite("book/inactive/a", []byte(`{"id":"a"}`), SetOptions{}),
	}))

	active, err := s.List(ctx, "book/active/")
	require.NoError(t, err)
	assert.Empty(t, active)

	inactive, err := s.List(ctx, "book/inactive/")
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "book/inactive/a", inactive[0].Key)
}

func TestPebbleStoreMergeReadsEarlierWriteInSameBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Commit(ctx, []Write{
		SetWrite("k", []byte(`{"a":1}`), SetOptions{}),
		SetWrite("k", []byte(`{"b":2}`), SetOptions{Merge: true}),
	}))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(got))
}

func TestPebbleStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("book/active/buy/%d", i), []byte(`{}`), SetOptions{}))
	}
	require.NoError(t, s.Set(ctx, "book/active/sell/9", []byte(`{}`), SetOptions{}))
	require.NoError(t, s.Set(ctx, "book/activex", []byte(`{}`), SetOptions{}))

	docs, err := s.List(ctx, "book/active/buy/")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "book/active/buy/0", docs[0].Key)

	docs, err = s.List(ctx, "book/active/")
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestCommitValidatesBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	writes := make([]Write, MaxBatchSize+1)
	for i := range writes {
		writes[i] = SetWrite(fmt.Sprintf("k/%d", i), []byte(`{}`), SetOptions{})
	}
	assert.ErrorIs(t, s.Commit(ctx, writes), ErrBatchTooLarge)
	assert.ErrorIs(t, s.Commit(ctx, []Write{SetWrite("", []byte(`{}`), SetOptions{})}), ErrEmptyKey)
	assert.NoError(t, s.Commit(ctx, nil))
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("ab"), prefixEnd([]byte("aa")))
	assert.Equal(t, []byte("b"), prefixEnd([]byte{'a', 0xff}))
	assert.Nil(t, prefixEnd([]byte{0xff, 0xff}))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `book\_active/50\%`, escapeLike("book_active/50%"))
}
