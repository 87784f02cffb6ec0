package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/obs"
	"bankmesh.org/internal/stream"
)

func TestMain(m *testing.M) {
	obs.Logger().SetOutput(io.Discard)
	os.Exit(m.Run())
}

func event(seq uint64) stream.TransferEvent {
	return stream.EventFromTransaction(ledger.Transaction{
		ID:       fmt.Sprintf("tx-%d", seq),
		Sequence: seq,
		Kind:     ledger.KindTransfer,
		Src:      ledger.Endpoint{BankID: 1003004, AccountID: 1},
		Dst:      ledger.Endpoint{BankID: 1003004, AccountID: 2},
		Amount:   1250,
		PostedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})
}

func TestSendEncodesEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got stream.TransferEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Sequence != 3 || got.Display != "12.50" {
			return fmt.Errorf("unexpected payload %s", val)
		}
		return nil
	})

	f := NewForwarder(producer, "")
	require.NoError(t, f.Send(event(3)))
	assert.Equal(t, DefaultTopic, f.topic)
	require.NoError(t, f.Close())
}

func TestSendPropagatesBrokerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	f := NewForwarder(producer, "transfers")
	err := f.Send(event(1))
	assert.True(t, errors.Is(err, sarama.ErrNotLeaderForPartition))
	require.NoError(t, f.Close())
}

func TestRunForwardsUntilClosed(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	ch := make(chan stream.TransferEvent, 3)
	for i := uint64(1); i <= 3; i++ {
		ch <- event(i)
	}
	close(ch)

	f := NewForwarder(producer, "transfers")
	f.Run(context.Background(), ch)
	require.NoError(t, f.Close())
}

func TestRunWithStreamSubscription(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	s := stream.New()
	ctx, cancel := context.WithCancel(context.Background())
	sub := s.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewForwarder(producer, "transfers").Run(ctx, sub)
	}()

	s.Publish(ledger.Transaction{ID: "x", Sequence: 1, Kind: ledger.KindTransfer, Amount: 1})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}
	require.NoError(t, producer.Close())
}
