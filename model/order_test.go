package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEthAmountAcceptsNumberAndString(t *testing.T) {
	var o struct {
		A EthAmount `json:"a"`
		B EthAmount `json:"b"`
		C EthAmount `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1.5,"b":" 2 ","c":null}`), &o))
	assert.Equal(t, EthAmount("1.5"), o.A)
	assert.Equal(t, EthAmount("2"), o.B)
	assert.Equal(t, EthAmount(""), o.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &o))
}

func TestOrderKeys(t *testing.T) {
	s := &StoredOrder{OrderId: "0xABC", Status: StatusActive, Order: Order{IsSellOrder: true}}
	assert.Equal(t, "orderbook/active/sell/0xabc", s.Key())
	assert.Equal(t, "orderbook/inactive/buy/", OrderListPrefix(StatusInactive, SideBuy))
}

func TestCollectionsDedup(t *testing.T) {
	o := Order{Nfts: []OrderItem{
		{CollectionAddress: "0xAAA"},
		{CollectionAddress: "0xbbb"},
		{CollectionAddress: "0xaaa"},
	}}
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, o.Collections())
}
