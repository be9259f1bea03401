package fallback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/adrec/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFileAppend(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	Convey("Given a fallback file in a fresh directory", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "event_log_fallback.txt")
		f := New(path)

		Convey("When appending two payloads", func() {
			So(f.Append(ctx, []byte(`{"ad_id":1}`)), ShouldBeNil)
			So(f.Append(ctx, []byte(`{"ad_id":2}`)), ShouldBeNil)

			Convey("Then each payload is one line", func() {
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, "{\"ad_id\":1}\n{\"ad_id\":2}\n")
			})
		})

		Convey("When appending concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = f.Append(ctx, []byte(fmt.Sprintf(`{"ad_id":%d,"pad":"%0100d"}`, i, i)))
				}(i)
			}
			wg.Wait()

			Convey("Then every line is intact", func() {
				fh, err := os.Open(path)
				So(err, ShouldBeNil)
				defer fh.Close()
				sc := bufio.NewScanner(fh)
				lines := 0
				for sc.Scan() {
					So(sc.Text(), ShouldStartWith, `{"ad_id":`)
					So(sc.Text(), ShouldEndWith, `"}`)
					lines++
				}
				So(lines, ShouldEqual, 50)
			})
		})
	})

	Convey("Given a path that cannot be opened", t, func() {
		dir := t.TempDir()
		f := New(dir)

		Convey("Then append reports a write error", func() {
			So(errors.Is(f.Append(ctx, []byte("x")), ErrWrite), ShouldBeTrue)
		})
	})
}
