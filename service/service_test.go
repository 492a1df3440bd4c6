package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/model"
	"github.com/ProjectsTask/EasySwapOrderBook/service/config"
)

const (
	testMaker      = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testCollection = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	testCurrency   = "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Log:         &xzap.LogConf{ServiceName: "orderbook-test", Mode: "console", Level: "error"},
		Store:       config.StoreCfg{Driver: config.StoreDriverPebble, PebbleDir: t.TempDir()},
		ChainCfg:    config.ChainCfg{Name: "sepolia", ID: 11155111},
		ContractCfg: config.ContractCfg{ExchangeAddress: "0x8617E340B3D01FA5F11F306F4090FD50E238070D", DomainName: "EasySwapOrderBook", DomainVersion: "1"},
		ProjectCfg:  config.ProjectCfg{Name: "EasySwap"},
		BatchCfg:    config.BatchCfg{Threshold: 100, Attempts: 1},
	}
}

func sellOrder() *model.Order {
	now := time.Now()
	return &model.Order{
		IsSellOrder:   true,
		Signer:        testMaker,
		StartPriceEth: "1",
		EndPriceEth:   "1",
		StartTimeMs:   now.Add(-time.Hour).UnixMilli(),
		EndTimeMs:     now.Add(time.Hour).UnixMilli(),
		Nonce:         "1",
		NumItems:      1,
		ExecParams: model.ExecParams{
			ComplicationAddress: testCurrency,
			CurrencyAddress:     testCurrency,
		},
		Nfts: []model.OrderItem{
			{CollectionAddress: testCollection, Tokens: []model.TokenInfo{{TokenId: "1", NumTokens: "1"}}},
		},
	}
}

func TestServicePersistsOrdersAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s, err := New(ctx, cfg)
	require.NoError(t, err)
	id, err := s.OrderBook().SubmitOrder(ctx, sellOrder(), testMaker)
	require.NoError(t, err)
	matches, err := s.OrderBook().MarketMatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, matches)
	require.NoError(t, s.Close(ctx))

	s, err = New(ctx, cfg)
	require.NoError(t, err)
	defer s.Close(ctx)

	cancelled, err := s.OrderBook().CancelOrder(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, cancelled)
	assert.Equal(t, model.StatusInvalid, cancelled.Status)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ContractCfg.ExchangeAddress = "not an address"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Store.Driver = "sqlite"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
