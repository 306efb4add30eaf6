package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func drain(ctx context.Context, q *Queue) []Message {
	var got []Message
	for m := range q.Messages(ctx) {
		got = append(got, m)
	}
	return got
}

func TestQueue_Ordering(t *testing.T) {
	Convey("Given a queue filled before anyone reads", t, func() {
		ctx := context.Background()
		q := NewQueue(WithInitialCapacity(2))
		for i := 0; i < 100; i++ {
			So(q.Emit(ctx, Progress("step %d", i)), ShouldBeNil)
		}
		So(q.Emit(ctx, Done()), ShouldBeNil)
		So(q.Close(), ShouldBeNil)

		Convey("Then the producer was never blocked and order is preserved", func() {
			got := drain(ctx, q)
			So(len(got), ShouldEqual, 101)
			So(got[0].Text, ShouldEqual, "step 0")
			So(got[99].Text, ShouldEqual, "step 99")
			So(got[100].Kind, ShouldEqual, KindDone)
		})

		Convey("Then emitting after close fails", func() {
			So(errors.Is(q.Emit(ctx, Progress("late")), ErrClosed), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)
		})
	})
}

func TestQueue_ConcurrentProducer(t *testing.T) {
	Convey("Given a producer racing a consumer", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q := NewQueue()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = q.Emit(ctx, Progress("%d", i))
			}
			_ = q.Close()
		}()

		got := drain(ctx, q)
		wg.Wait()

		Convey("Then every record arrives exactly once in order", func() {
			So(len(got), ShouldEqual, 500)
			for i, m := range got {
				So(m.Text, ShouldEqual, Progress("%d", i).Text)
			}
			So(q.Len(), ShouldEqual, 0)
		})
	})
}

func TestQueue_Abandon(t *testing.T) {
	Convey("Given a consumer that walks away", t, func() {
		ctx := context.Background()
		q := NewQueue()
		So(q.Emit(ctx, Progress("one")), ShouldBeNil)
		So(q.Emit(ctx, Progress("two")), ShouldBeNil)

		q.Abandon()

		Convey("Then the producer is told to stop", func() {
			So(errors.Is(q.Emit(ctx, Progress("three")), ErrConsumerGone), ShouldBeTrue)
			So(q.Len(), ShouldEqual, 0)
		})

		Convey("Then the delivery channel closes", func() {
			So(drain(ctx, q), ShouldBeEmpty)
		})
	})
}

type failingSink struct {
	accepted int
	limit    int
	closed   bool
}

func (f *failingSink) Emit(_ context.Context, _ Message) error {
	if f.accepted >= f.limit {
		return ErrConsumerGone
	}
	f.accepted++
	return nil
}

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestForward(t *testing.T) {
	Convey("Given a closed queue and a healthy destination", t, func() {
		ctx := context.Background()
		q := NewQueue()
		_ = q.Emit(ctx, Progress("a"))
		_ = q.Emit(ctx, Done())
		_ = q.Close()
		dst := &failingSink{limit: 10}

		Convey("Then everything is forwarded and the destination closed", func() {
			So(Forward(ctx, q, dst), ShouldBeNil)
			So(dst.accepted, ShouldEqual, 2)
			So(dst.closed, ShouldBeTrue)
		})
	})

	Convey("Given a destination that disconnects", t, func() {
		ctx := context.Background()
		q := NewQueue()
		_ = q.Emit(ctx, Progress("a"))
		_ = q.Emit(ctx, Progress("b"))
		dst := &failingSink{limit: 1}

		err := Forward(ctx, q, dst)

		Convey("Then the queue is abandoned", func() {
			So(errors.Is(err, ErrConsumerGone), ShouldBeTrue)
			So(errors.Is(q.Emit(ctx, Progress("c")), ErrConsumerGone), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		q := NewQueue()
		cancel()

		err := Forward(ctx, q, &failingSink{limit: 1})

		Convey("Then the producer side is released", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(errors.Is(q.Emit(context.Background(), Progress("x")), ErrConsumerGone), ShouldBeTrue)
		})
	})
}
