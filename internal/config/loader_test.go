package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/fightlog/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FIGHTLOG_CONFIG", "")

	convey.Convey("When loading config with defaults only", t, func() {
		cfg, err := config.Load(context.Background())

		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
		convey.So(cfg.QueueSize, convey.ShouldEqual, 100_000)
		convey.So(cfg.GroupTimeoutSeconds, convey.ShouldEqual, 15)
		convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
		convey.So(cfg.BuffRetentionSeconds, convey.ShouldEqual, 1800)
	})
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("FIGHTLOG_CONFIG", "")
	t.Setenv("FIGHTLOG_ADDR", ":8080")
	t.Setenv("FIGHTLOG_QUEUE_SIZE", "5000")
	t.Setenv("FIGHTLOG_RAID_TIMEOUT_SECONDS", "120")
	t.Setenv("FIGHTLOG_WATCH_TEMPLATES", "true")
	t.Setenv("FIGHTLOG_STORE_DRIVER", "sqlite")
	t.Setenv("FIGHTLOG_SQLITE_PATH", "/tmp/records.db")

	convey.Convey("When loading config with environment variables", t, func() {
		cfg, err := config.Load(context.Background())

		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
		convey.So(cfg.QueueSize, convey.ShouldEqual, 5000)
		convey.So(cfg.RaidTimeoutSeconds, convey.ShouldEqual, 120)
		convey.So(cfg.WatchTemplates, convey.ShouldBeTrue)
		convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
		convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/records.db")
		convey.So(cfg.GroupTimeoutSeconds, convey.ShouldEqual, 15)
	})
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fightlog.yaml")
	body := "addr: \":7070\"\ngroup_timeout_seconds: 30\noutput_path: records.ndjson\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FIGHTLOG_CONFIG", path)
	t.Setenv("FIGHTLOG_GROUP_TIMEOUT_SECONDS", "20")

	convey.Convey("When loading config from a YAML file", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then file values apply and env overrides the file", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			convey.So(cfg.OutputPath, convey.ShouldEqual, "records.ndjson")
			convey.So(cfg.GroupTimeoutSeconds, convey.ShouldEqual, 20)
		})
	})
}

func TestLoad_Errors(t *testing.T) {
	convey.Convey("When the config file is missing", t, func() {
		t.Setenv("FIGHTLOG_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := config.Load(context.Background())

		convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
	})

	convey.Convey("When the loaded config is invalid", t, func() {
		t.Setenv("FIGHTLOG_CONFIG", "")
		t.Setenv("FIGHTLOG_STORE_DRIVER", "bolt")

		_, err := config.Load(context.Background())

		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
	})
}
