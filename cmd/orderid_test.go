package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/model"
	"github.com/ProjectsTask/EasySwapOrderBook/service/orderhash"
)

const orderJson = `{
	"isSellOrder": true,
	"signer": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"startPriceEth": 1.5,
	"endPriceEth": "1",
	"startTimeMs": 1700000000000,
	"endTimeMs": 1800000000000,
	"minBpsToSeller": 9000,
	"nonce": "7",
	"numItems": 1,
	"execParams": {
		"complicationAddress": "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"currencyAddress": "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"
	},
	"extraParams": {},
	"nfts": [
		{"collectionAddress": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", "tokens": [{"tokenId": "42", "numTokens": "1"}]}
	],
	"signature": "0xdead"
}`

var testDomain = orderhash.Domain{
	Name:            "EasySwapOrderBook",
	Version:         "1",
	ChainId:         "11155111",
	ExchangeAddress: "0x8617E340B3D01FA5F11F306F4090FD50E238070D",
}

func TestComputeOrderId(t *testing.T) {
	var order model.Order
	require.NoError(t, json.Unmarshal([]byte(orderJson), &order))
	want := orderhash.NewIdentity(zap.NewNop()).OrderId(&order, order.Signer, testDomain)

	id, err := computeOrderId(strings.NewReader(orderJson), "", testDomain)
	require.NoError(t, err)
	assert.Equal(t, want, id)
	assert.Len(t, id, 66)

	// 指定 maker 时覆盖订单中的 signer
	other, err := computeOrderId(strings.NewReader(orderJson), "0x52908400098527886E0F7030069857D2E4169EE7", testDomain)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestComputeOrderIdErrors(t *testing.T) {
	_, err := computeOrderId(strings.NewReader("{"), "", testDomain)
	assert.Error(t, err)

	bad := testDomain
	bad.ExchangeAddress = "0x1"
	_, err = computeOrderId(strings.NewReader(orderJson), "", bad)
	assert.Error(t, err)
}
