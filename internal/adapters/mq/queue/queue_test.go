package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/adrec/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func click(adID int64) model.Event {
	return model.Event{TenantID: 1, AdID: adID, Kind: model.KindClick, OccurredAt: time.Unix(100, 0)}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity two", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("When enqueueing within capacity", func() {
			So(q.Enqueue(ctx, click(1)), ShouldBeTrue)
			So(q.Enqueue(ctx, click(2)), ShouldBeTrue)

			Convey("Then the length tracks the backlog", func() {
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("Then a third event is rejected", func() {
				So(q.Enqueue(ctx, click(3)), ShouldBeFalse)
				So(errors.Is(q.Publish(ctx, model.NewRecord(click(3))), ErrFull), ShouldBeTrue)
			})

			Convey("Then events dequeue in order", func() {
				ch := q.Dequeue(ctx)
				So((<-ch).AdID, ShouldEqual, 1)
				So((<-ch).AdID, ShouldEqual, 2)
			})
		})

		Convey("When publishing a record", func() {
			uid := int64(5)
			rec := model.NewRecord(model.Event{TenantID: 3, AdID: 9, UserID: &uid, Kind: model.KindImpression, OccurredAt: time.Unix(200, 0)})
			So(q.Connected(ctx), ShouldBeTrue)
			So(q.Publish(ctx, rec), ShouldBeNil)

			Convey("Then the dequeued event matches the record", func() {
				e := <-q.Dequeue(ctx)
				So(e.AdID, ShouldEqual, 9)
				So(e.TenantID, ShouldEqual, 3)
				So(*e.UserID, ShouldEqual, 5)
				So(e.Kind, ShouldEqual, model.KindImpression)
				So(e.OccurredAt.Unix(), ShouldEqual, 200)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, click(1)), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then it rejects new events and reports disconnected", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Connected(ctx), ShouldBeFalse)
				So(q.Enqueue(ctx, click(2)), ShouldBeFalse)
				So(errors.Is(q.Publish(ctx, model.NewRecord(click(2))), ErrClosed), ShouldBeTrue)
			})

			Convey("Then remaining events drain before the channel closes", func() {
				var got []int64
				for e := range q.Dequeue(ctx) {
					got = append(got, e.AdID)
				}
				So(got, ShouldResemble, []int64{1})
			})
		})
	})
}

func TestQueueCapacityOption(t *testing.T) {
	Convey("Given capacity options", t, func() {
		So(NewInMemoryQueue().Cap(), ShouldEqual, defaultQueueCapacity)
		So(NewInMemoryQueue(WithCapacity(0)).Cap(), ShouldEqual, defaultQueueCapacity)
		So(NewInMemoryQueue(WithCapacity(3)).Cap(), ShouldEqual, 3)
	})

	Convey("Given a cancelled context", t, func() {
		q := NewInMemoryQueue(WithCapacity(1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := q.Publish(ctx, model.NewRecord(click(1)))
		So(errors.Is(err, ErrFull), ShouldBeTrue)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(q.Len(context.Background()), ShouldEqual, 0)
	})
}

func TestDequeueCancellationKeepsEvents(t *testing.T) {
	Convey("Given a queue with two events and a consumer that stops after one", t, func() {
		q := NewInMemoryQueue(WithCapacity(4))
		So(q.Enqueue(context.Background(), click(1)), ShouldBeTrue)
		So(q.Enqueue(context.Background(), click(2)), ShouldBeTrue)

		ctx, cancel := context.WithCancel(context.Background())
		first := q.Dequeue(ctx)
		var got []int64
		got = append(got, (<-first).AdID)
		cancel()
		// Whatever the stopped consumer still hands over counts as delivered.
		for e := range first {
			got = append(got, e.AdID)
		}

		Convey("Then a later consumer receives the rest", func() {
			So(q.Close(), ShouldBeNil)
			for e := range q.Dequeue(context.Background()) {
				got = append(got, e.AdID)
			}
			So(got, ShouldResemble, []int64{1, 2})
			So(q.Len(context.Background()), ShouldEqual, 0)
		})
	})
}
