package buffs

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	Convey("Given a registry with landings on one actor", t, func() {
		r := NewRegistry()
		r.Record("Aldar", "Aegolism", Beneficial, t0)
		r.Record("Aldar", "Tashan", Detrimental, t0.Add(30*time.Second))
		r.Record("Aldar", "Haste", Beneficial, t0.Add(10*time.Second))

		Convey("When querying a window", func() {
			got := r.Landed("Aldar", t0.Add(5*time.Second), t0.Add(30*time.Second))

			Convey("Then only landings inside it should come back in time order", func() {
				So(len(got), ShouldEqual, 2)
				So(got[0].Spell, ShouldEqual, "Haste")
				So(got[1].Spell, ShouldEqual, "Tashan")
				So(got[1].Kind, ShouldEqual, Detrimental)
			})
		})

		Convey("When querying an unknown actor", func() {
			So(r.Landed("Bren", t0, t0.Add(time.Hour)), ShouldBeEmpty)
		})

		Convey("When ignoring empty input", func() {
			r.Record("", "Haste", Beneficial, t0)
			r.Record("Bren", "", Beneficial, t0)
			So(r.Landed("Bren", t0, t0), ShouldBeEmpty)
		})

		Convey("When the registry is reset", func() {
			r.Reset()
			So(r.Landed("Aldar", t0, t0.Add(time.Hour)), ShouldBeEmpty)
		})
	})

	Convey("Given a registry with retention", t, func() {
		r := NewRegistry(WithRetention(time.Minute))
		r.Record("Aldar", "Aegolism", Beneficial, t0)
		r.Record("Aldar", "Haste", Beneficial, t0.Add(2*time.Minute))

		Convey("Then landings older than the window should be dropped", func() {
			got := r.Landed("Aldar", t0.Add(-time.Hour), t0.Add(time.Hour))
			So(len(got), ShouldEqual, 1)
			So(got[0].Spell, ShouldEqual, "Haste")
			So(Beneficial.String(), ShouldEqual, "beneficial")
		})
	})
}
