package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lifehub/internal/amqp"
	"lifehub/internal/sheets"
	"lifehub/internal/sheets/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeConsumer hands its events to the first consumer, records what was
// requeued, then blocks until cancelled.
type fakeConsumer struct {
	mu       sync.Mutex
	events   []*amqp.MutationEvent
	requeued []string
}

func (f *fakeConsumer) Consume(ctx context.Context, handler func(context.Context, *amqp.MutationEvent) error) error {
	f.mu.Lock()
	events := f.events
	f.events = nil
	f.mu.Unlock()

	for _, ev := range events {
		if err := handler(ctx, ev); err != nil {
			f.mu.Lock()
			f.requeued = append(f.requeued, ev.ID)
			f.mu.Unlock()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func expenseEvent(id string) *amqp.MutationEvent {
	return amqp.NewMutationEvent(amqp.EntityExpense, amqp.ActionCreate, id, "owner-1").
		With("name", "Lunch").
		With("amount", "12.00").
		With("category", "food")
}

func TestHandleEvent(t *testing.T) {
	store := memory.New()
	w := NewExportWorker(store, 1, nil)
	ctx := context.Background()

	require.NoError(t, w.HandleEvent(ctx, expenseEvent("e1")))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewMutationEvent(amqp.EntityBook, amqp.ActionCreate, "b1", "owner-1")))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewMutationEvent(amqp.EntityExpense, amqp.ActionDelete, "e1", "owner-1")))

	got := store.Rows()
	want := []sheets.ActivityRow{
		{OwnerID: "owner-1", Action: "create", ExpenseID: "e1", Name: "Lunch", Amount: "12.00", Category: "food"},
		{OwnerID: "owner-1", Action: "delete", ExpenseID: "e1"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(sheets.ActivityRow{}, "Timestamp")); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Stats{Exported: 2, Skipped: 1}, w.Stats())
}

func TestHandleEventWriteFailure(t *testing.T) {
	store := memory.New()
	store.Err = errors.New("quota exceeded")
	w := NewExportWorker(store, 1, nil)

	err := w.HandleEvent(context.Background(), expenseEvent("e1"))
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, int64(1), w.Stats().Failed)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := memory.New()
	w := NewExportWorker(store, 3, nil)
	consumer := &fakeConsumer{events: []*amqp.MutationEvent{expenseEvent("e1"), expenseEvent("e2")}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	assert.Eventually(t, func() bool { return len(store.Rows()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Empty(t, consumer.requeued)
}
