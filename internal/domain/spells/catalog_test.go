package spells

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const sample = `
spells:
  - name: Complete Heal
    class: Cleric
    target: single
  - name: Mend Companion
    class: Magician
    target: pet
  - name: Unknown Chant
`

func TestCatalog(t *testing.T) {
	Convey("Given a parsed catalog", t, func() {
		c, err := Parse([]byte(sample))
		So(err, ShouldBeNil)
		So(c.Len(), ShouldEqual, 3)

		Convey("When looking up spells case-insensitively", func() {
			class, ok := c.Class("complete heal")
			So(ok, ShouldBeTrue)
			So(class, ShouldEqual, "Cleric")

			target, ok := c.Target("Mend Companion")
			So(ok, ShouldBeTrue)
			So(target, ShouldEqual, TargetPet)
		})

		Convey("When an entry has no class or target", func() {
			_, ok := c.Class("Unknown Chant")
			So(ok, ShouldBeFalse)
			_, ok = c.Target("Unknown Chant")
			So(ok, ShouldBeFalse)
		})

		Convey("When a spell is missing", func() {
			_, ok := c.Class("Fireball")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given malformed catalogs", t, func() {
		_, err := Parse([]byte("spells: [{class: Cleric}]"))
		So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)

		_, err = Parse([]byte("spells: [{name: Zap, target: moon}]"))
		So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)

		_, err = Parse([]byte("spells: {"))
		So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)
	})

	Convey("Given a catalog file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "spells.yaml")
		So(os.WriteFile(path, []byte(sample), 0o600), ShouldBeNil)

		c, err := LoadFile(path)
		So(err, ShouldBeNil)
		So(c.Len(), ShouldEqual, 3)

		_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)
	})

	Convey("Given the empty lookup", t, func() {
		var l Lookup = None{}
		_, ok := l.Class("Complete Heal")
		So(ok, ShouldBeFalse)
	})
}
