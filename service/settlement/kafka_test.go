package settlement

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectsTask/EasySwapOrderBook/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaExecutorPublishesMatch(t *testing.T) {
	w := &fakeWriter{}
	e := &KafkaExecutor{writer: w, chainId: 1, now: func() time.Time { return time.UnixMilli(42) }}

	match := &model.BuyOrderMatch{
		BuyOrder:   &model.StoredOrder{OrderId: "0xbuy"},
		SellOrders: []*model.StoredOrder{{OrderId: "0xs1"}, {OrderId: "0xs2"}},
	}
	require.NoError(t, e.Execute(context.Background(), match))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "0xbuy", string(w.msgs[0].Key))

	var msg MatchMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &msg))
	assert.Equal(t, int64(1), msg.ChainId)
	assert.Equal(t, []string{"0xs1", "0xs2"}, msg.SellOrderIds)
	assert.Equal(t, int64(42), msg.MatchedAt)
	assert.Equal(t, "0xbuy", msg.Match.BuyOrder.OrderId)

	require.NoError(t, e.Close())
	assert.True(t, w.closed)
}

func TestKafkaExecutorErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	e := &KafkaExecutor{writer: w, now: time.Now}

	assert.Error(t, e.Execute(context.Background(), nil))
	assert.Error(t, e.Execute(context.Background(), &model.BuyOrderMatch{BuyOrder: &model.StoredOrder{OrderId: "0x1"}}))
}
