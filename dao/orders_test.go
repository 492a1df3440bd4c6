package dao

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectsTask/EasySwapOrderBook/model"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/docstore"
)

func newTestDao(t *testing.T) *Dao {
	t.Helper()
	store, err := docstore.OpenPebbleInMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(context.Background(), store)
}

func storedOrder(id string, sell bool, collections ...string) *model.StoredOrder {
	o := &model.StoredOrder{OrderId: id, Maker: "0x01", Order: model.Order{IsSellOrder: sell}}
	for _, c := range collections {
		o.Order.Nfts = append(o.Order.Nfts, model.OrderItem{CollectionAddress: c})
	}
	return o
}

func put(t *testing.T, d *Dao, o *model.StoredOrder) {
	t.Helper()
	w, err := NewOrderWrite(o, time.UnixMilli(1000))
	require.NoError(t, err)
	require.NoError(t, d.Store.Commit(context.Background(), []docstore.Write{w}))
}

func TestGetOrderMissReturnsNil(t *testing.T) {
	d := newTestDao(t)
	o, err := d.GetOrder(context.Background(), model.StatusActive, model.SideBuy, "0xabc")
	require.NoError(t, err)
	assert.Nil(t, o)

	o, err = d.FindActiveOrder(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestNewOrderWriteAndFind(t *testing.T) {
	d := newTestDao(t)
	put(t, d, storedOrder("0xAA", true, "0xc1"))

	o, err := d.FindActiveOrder(context.Background(), "0xaa")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, model.StatusActive, o.Status)
	assert.Equal(t, int64(1000), o.CreateTime)
	assert.True(t, o.Order.IsSellOrder)
}

func TestMoveOrderWrites(t *testing.T) {
	ctx := context.Background()
	d := newTestDao(t)
	o := storedOrder("0xaa", false, "0xc1")
	put(t, d, o)

	writes, err := MoveOrderWrites(o, model.StatusInvalid, time.UnixMilli(5000))
	require.NoError(t, err)
	require.Len(t, writes, 2)
	assert.Equal(t, "orderbook/active/buy/0xaa", writes[0].Key)
	assert.True(t, writes[0].Delete)
	assert.Equal(t, "orderbook/invalid/buy/0xaa", writes[1].Key)
	require.NoError(t, d.Store.Commit(ctx, writes))

	active, err := d.ListActiveOrders(ctx, model.SideBuy)
	require.NoError(t, err)
	assert.Empty(t, active)

	invalid, err := d.ListOrders(ctx, model.StatusInvalid, model.SideBuy)
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	assert.Equal(t, int64(5000), invalid[0].UpdateTime)
	assert.Equal(t, model.StatusInvalid, invalid[0].Status)

	_, err = MoveOrderWrites(o, model.StatusInvalid, time.UnixMilli(6000))
	assert.Error(t, err)
}

func TestListSellOrdersByCollections(t *testing.T) {
	ctx := context.Background()
	d := newTestDao(t)
	put(t, d, storedOrder("0x01", true, "0xC1"))
	put(t, d, storedOrder("0x02", true, "0xc1", "0xc2"))
	put(t, d, storedOrder("0x03", true, "0xc3"))
	put(t, d, storedOrder("0x04", false, "0xc1"))

	got, err := d.ListSellOrdersByCollections(ctx, []string{"0xc1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0x01", got[0].OrderId)

	got, err = d.ListSellOrdersByCollections(ctx, []string{"0xC1", "0xc2"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListOrdersSkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	d := newTestDao(t)
	put(t, d, storedOrder("0x01", true, "0xc1"))
	require.NoError(t, d.Store.Set(ctx, model.OrderKey(model.StatusActive, model.SideSell, "0x02"), []byte("not json"), docstore.SetOptions{}))

	got, err := d.ListActiveOrders(ctx, model.SideSell)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0x01", got[0].OrderId)
}
