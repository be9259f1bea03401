package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func openTestStore(t *testing.T) *GormStore {
	t.Helper()
	// goconvey re-enters the outer block per leaf; each pass gets its own database.
	name := "adrec_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s, err := Open(context.Background(), Connection{
		Driver: DriverSQLite,
		Path:   "file:" + name + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr(v int64) *int64 { return &v }

func TestGormStore(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

	Convey("Given a migrated sqlite store", t, func() {
		s := openTestStore(t)
		So(s.Ping(ctx), ShouldBeNil)

		id1, err := s.InsertAd(ctx, model.Ad{TenantID: 1, Name: "shoes", StartTime: base, EndTime: base.Add(time.Hour), Tags: []string{"sports", "running"}})
		So(err, ShouldBeNil)
		id2, err := s.InsertAd(ctx, model.Ad{TenantID: 2, Name: "laptop", StartTime: base, EndTime: base.Add(time.Hour)})
		So(err, ShouldBeNil)

		Convey("When listing ads", func() {
			ads, err := s.ListAds(ctx)
			So(err, ShouldBeNil)

			Convey("Then tags are parsed from the target audience", func() {
				So(len(ads), ShouldEqual, 2)
				So(ads[0].ID, ShouldEqual, id1)
				So(ads[0].Tags, ShouldResemble, []string{"sports", "running"})
				So(ads[1].ID, ShouldEqual, id2)
				So(ads[1].Tags, ShouldBeEmpty)
			})
		})

		Convey("When events are inserted", func() {
			So(s.InsertEvent(ctx, model.Event{TenantID: 1, AdID: id1, UserID: ptr(7), Kind: model.KindImpression, OccurredAt: base}), ShouldBeNil)
			So(s.InsertEvent(ctx, model.Event{TenantID: 1, AdID: id1, UserID: ptr(7), Kind: model.KindClick, OccurredAt: base.Add(time.Minute)}), ShouldBeNil)
			So(s.InsertEvent(ctx, model.Event{TenantID: 2, AdID: id2, Kind: model.KindImpression, OccurredAt: base.Add(2 * time.Minute), Data: []byte(`{"source":"web"}`)}), ShouldBeNil)
			So(s.InsertEvent(ctx, model.Event{TenantID: 2, AdID: id2, UserID: ptr(8), Kind: model.KindImpression, OccurredAt: base.Add(3 * time.Minute)}), ShouldBeNil)

			Convey("Then all events are listed", func() {
				all, err := s.ListAllEvents(ctx)
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 4)
			})

			Convey("Then user events come newest first", func() {
				mine, err := s.ListEventsForUser(ctx, 7)
				So(err, ShouldBeNil)
				So(len(mine), ShouldEqual, 2)
				So(mine[0].Kind, ShouldEqual, model.KindClick)
				So(mine[1].Kind, ShouldEqual, model.KindImpression)
				So(*mine[0].UserID, ShouldEqual, 7)
			})

			Convey("Then anonymous events keep a nil user", func() {
				tenant := int64(2)
				events, err := s.ListEventsForTenant(ctx, &tenant)
				So(err, ShouldBeNil)
				So(len(events), ShouldEqual, 2)
				So(events[0].UserID, ShouldBeNil)
				So(string(events[0].Data), ShouldEqual, `{"source":"web"}`)
			})

			Convey("Then a nil tenant selects everything", func() {
				events, err := s.ListEventsForTenant(ctx, nil)
				So(err, ShouldBeNil)
				So(len(events), ShouldEqual, 4)
			})
		})

		Convey("When managing one tenant's ads", func() {
			id3, err := s.InsertAd(ctx, model.Ad{TenantID: 1, Name: "socks", StartTime: base, EndTime: base.Add(time.Hour), Audience: []byte(`{"interests":["fashion"],"age":"18-24"}`)})
			So(err, ShouldBeNil)

			Convey("Then listing is scoped to the tenant and paginated", func() {
				page, total, err := s.ListTenantAds(ctx, 1, 1, 1)
				So(err, ShouldBeNil)
				So(total, ShouldEqual, 2)
				So(len(page), ShouldEqual, 1)
				So(page[0].ID, ShouldEqual, id1)

				page, _, err = s.ListTenantAds(ctx, 1, 2, 1)
				So(err, ShouldBeNil)
				So(page[0].ID, ShouldEqual, id3)

				page, total, err = s.ListTenantAds(ctx, 3, 1, 10)
				So(err, ShouldBeNil)
				So(total, ShouldEqual, 0)
				So(page, ShouldBeEmpty)
			})

			Convey("Then an ad keeps its whole audience document", func() {
				ad, err := s.GetAd(ctx, 1, id3)
				So(err, ShouldBeNil)
				So(ad.Name, ShouldEqual, "socks")
				So(ad.Tags, ShouldResemble, []string{"fashion"})
				So(string(ad.Audience), ShouldContainSubstring, `"age"`)
			})

			Convey("Then another tenant's ad is not found", func() {
				_, err := s.GetAd(ctx, 1, id2)
				So(errors.Is(err, model.ErrAdNotFound), ShouldBeTrue)
				So(errors.Is(err, ErrStoreUnavailable), ShouldBeFalse)

				_, err = s.UpdateAd(ctx, model.Ad{ID: id2, TenantID: 1, Name: "stolen"})
				So(errors.Is(err, model.ErrAdNotFound), ShouldBeTrue)

				So(errors.Is(s.DeleteAd(ctx, 1, id2), model.ErrAdNotFound), ShouldBeTrue)
			})

			Convey("Then an update replaces the editable fields", func() {
				updated, err := s.UpdateAd(ctx, model.Ad{ID: id3, TenantID: 1, Name: "wool socks", Content: "warm", StartTime: base, EndTime: base.Add(2 * time.Hour)})
				So(err, ShouldBeNil)
				So(updated.Name, ShouldEqual, "wool socks")

				got, err := s.GetAd(ctx, 1, id3)
				So(err, ShouldBeNil)
				So(got.Content, ShouldEqual, "warm")
				So(got.EndTime.Equal(base.Add(2*time.Hour)), ShouldBeTrue)
				So(got.Audience, ShouldBeEmpty)
				So(got.Tags, ShouldBeEmpty)
			})

			Convey("Then a deleted ad is gone", func() {
				So(s.DeleteAd(ctx, 1, id3), ShouldBeNil)
				_, err := s.GetAd(ctx, 1, id3)
				So(errors.Is(err, model.ErrAdNotFound), ShouldBeTrue)
				So(errors.Is(s.DeleteAd(ctx, 1, id3), model.ErrAdNotFound), ShouldBeTrue)
			})
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)
			_, err := s.ListAds(ctx)

			Convey("Then queries report the store as unavailable", func() {
				So(errors.Is(err, ErrStoreUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestParseTags(t *testing.T) {
	Convey("Given target audience documents", t, func() {
		So(parseTags(datatypes.JSON(`{"interests":["a","b"]}`)), ShouldResemble, []string{"a", "b"})
		So(parseTags(datatypes.JSON(`{"age":"18-24"}`)), ShouldBeEmpty)
		So(parseTags(datatypes.JSON(`not json`)), ShouldBeEmpty)
		So(parseTags(nil), ShouldBeEmpty)
	})
}

func TestConnectionDialector(t *testing.T) {
	Convey("Given connection settings", t, func() {
		for _, driver := range []string{DriverMySQL, DriverPostgres, DriverSQLite} {
			d, err := Connection{Driver: driver, Host: "db", Port: 1, Database: "x", Username: "u", Password: "p", Path: ":memory:"}.Dialector()
			So(err, ShouldBeNil)
			So(d.Name(), ShouldNotBeEmpty)
		}

		_, err := Connection{Driver: "oracle"}.Dialector()
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
	})
}
