package buffer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/adrec/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClient struct {
	pushErr error
	pingErr error
	pushed  map[string][]string
	closed  bool
}

func (f *fakeClient) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	if f.pushed == nil {
		f.pushed = map[string][]string{}
	}
	for _, v := range values {
		f.pushed[key] = append(f.pushed[key], string(v.([]byte)))
	}
	return redis.NewIntResult(int64(len(f.pushed[key])), nil)
}

func (f *fakeClient) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestRedisBuffer(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	Convey("Given a reachable redis", t, func() {
		client := &fakeClient{}
		r := newRedis(client)

		Convey("When appending a payload", func() {
			So(r.Append(ctx, []byte(`{"ad_id":1}`)), ShouldBeNil)

			Convey("Then it lands on the default list", func() {
				So(client.pushed["event_queue"], ShouldResemble, []string{`{"ad_id":1}`})
			})
		})

		Convey("When a custom list is configured", func() {
			r := newRedis(client, WithList("events_dev"))
			So(r.Append(ctx, []byte("x")), ShouldBeNil)
			So(client.pushed["events_dev"], ShouldResemble, []string{"x"})
		})

		Convey("Then it reports healthy", func() {
			So(r.Healthy(ctx), ShouldBeTrue)
		})

		Convey("Then close releases the client", func() {
			So(r.Close(), ShouldBeNil)
			So(client.closed, ShouldBeTrue)
		})
	})

	Convey("Given a failing redis", t, func() {
		down := errors.New("connection refused")
		r := newRedis(&fakeClient{pushErr: down, pingErr: down})

		Convey("Then append wraps the error", func() {
			err := r.Append(ctx, []byte("x"))
			So(errors.Is(err, ErrAppend), ShouldBeTrue)
			So(errors.Is(err, down), ShouldBeTrue)
		})

		Convey("Then it reports unhealthy", func() {
			So(r.Healthy(ctx), ShouldBeFalse)
		})
	})

	Convey("Given nothing listens on the address", t, func() {
		_, err := Connect(ctx, "127.0.0.1:1", "", 0, WithPingTimeout(200*time.Millisecond))

		Convey("Then connect fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
