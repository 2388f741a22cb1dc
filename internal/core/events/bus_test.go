package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ = Describe("EventBus", func() {
	var bus *EventBus

	BeforeEach(func() {
		bus = NewEventBus(quietLogger())
	})

	It("delivers to every subscriber of the event type", func() {
		var calls int32
		for i := 0; i < 3; i++ {
			bus.Subscribe(EventTypeExpenseCreated, func(ctx context.Context, e Event) error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}
		bus.Subscribe(EventTypeExpenseStatusChanged, func(ctx context.Context, e Event) error {
			atomic.AddInt32(&calls, 100)
			return nil
		})

		Expect(bus.Publish(context.Background(), NewExpenseCreatedEvent(1, 1, "DRAFT", "10", "USD"))).To(Succeed())
		Expect(bus.Wait(context.Background())).To(Succeed())

		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(3)))
	})

	It("keeps handlers running after the publishing request is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		seen := make(chan error, 1)
		bus.Subscribe(EventTypeExpenseCreated, func(hctx context.Context, e Event) error {
			time.Sleep(10 * time.Millisecond)
			seen <- hctx.Err()
			return nil
		})

		Expect(bus.Publish(ctx, NewExpenseCreatedEvent(1, 1, "DRAFT", "10", "USD"))).To(Succeed())
		cancel()

		Eventually(seen).Should(Receive(BeNil()))
	})

	It("survives failing and panicking handlers", func() {
		var ok int32
		bus.Subscribe(EventTypeExpenseCreated, func(ctx context.Context, e Event) error {
			return errors.New("boom")
		})
		bus.Subscribe(EventTypeExpenseCreated, func(ctx context.Context, e Event) error {
			panic("handler bug")
		})
		bus.Subscribe(EventTypeExpenseCreated, func(ctx context.Context, e Event) error {
			atomic.AddInt32(&ok, 1)
			return nil
		})

		Expect(bus.Publish(context.Background(), NewExpenseCreatedEvent(1, 1, "DRAFT", "10", "USD"))).To(Succeed())
		Expect(bus.Wait(context.Background())).To(Succeed())

		Expect(atomic.LoadInt32(&ok)).To(Equal(int32(1)))
	})

	It("stops PublishSync at the first failure", func() {
		var second bool
		bus.Subscribe(EventTypeExpenseCreated, func(ctx context.Context, e Event) error {
			return errors.New("boom")
		})
		bus.Subscribe(EventTypeExpenseCreated, func(ctx context.Context, e Event) error {
			second = true
			return nil
		})

		err := bus.PublishSync(context.Background(), NewExpenseCreatedEvent(1, 1, "DRAFT", "10", "USD"))

		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(second).To(BeFalse())
	})

	It("gives up waiting when the context ends", func() {
		release := make(chan struct{})
		bus.Subscribe(EventTypeExpenseCreated, func(ctx context.Context, e Event) error {
			<-release
			return nil
		})
		Expect(bus.Publish(context.Background(), NewExpenseCreatedEvent(1, 1, "DRAFT", "10", "USD"))).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(bus.Wait(ctx)).To(MatchError(context.DeadlineExceeded))

		close(release)
		Expect(bus.Wait(context.Background())).To(Succeed())
	})
})

var _ = Describe("Expense subscribers", func() {
	It("counts committed status changes by transition", func() {
		bus := NewEventBus(quietLogger())
		RegisterExpenseSubscribers(bus, quietLogger())
		counter := statusChangesTotal.WithLabelValues("SUBMITTED", "MANAGER_APPROVED", "APPROVE")
		before := testutil.ToFloat64(counter)

		event := NewExpenseStatusChangedEvent(7, 1, 2, "SUBMITTED", "MANAGER_APPROVED", "APPROVE", "MANAGER")
		Expect(bus.Publish(context.Background(), event)).To(Succeed())
		Expect(bus.Wait(context.Background())).To(Succeed())

		Expect(testutil.ToFloat64(counter)).To(Equal(before + 1))
	})

	It("carries the transition in the payload", func() {
		event := NewExpenseStatusChangedEvent(7, 1, 2, "SUBMITTED", "MANAGER_APPROVED", "APPROVE", "MANAGER")

		Expect(event.EventType()).To(Equal(EventTypeExpenseStatusChanged))
		Expect(event.EventID()).NotTo(BeEmpty())
		Expect(event.Payload()).To(HaveKeyWithValue("to_status", "MANAGER_APPROVED"))
	})
})
