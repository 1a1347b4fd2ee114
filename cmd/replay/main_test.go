package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReplayCommands(t *testing.T) {
	convey.Convey("Given a generated event file", t, func() {
		dir := t.TempDir()
		events := filepath.Join(dir, "events.ndjson")

		_, err := execute("generate", "--fights", "3", "--seed", "9", "-o", events)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When it is replayed offline", func() {
			out, err := execute("run", "--events", events, "--out", filepath.Join(dir, "records.ndjson"))

			convey.Convey("Then the summary lists the three kills", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "a gnoll pup")
				convey.So(out, convey.ShouldContainSubstring, "a decaying skeleton")
				convey.So(out, convey.ShouldContainSubstring, "3 encounters")
			})
		})

		convey.Convey("When run is missing its event file flag", func() {
			_, err := execute("run")

			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
