package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/walletmatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		t.Chdir(t.TempDir())
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("WALLETMATCH_ANCHOR_CAP", "25")
			t.Setenv("WALLETMATCH_WORKER_COUNT", "4")
			t.Setenv("WALLETMATCH_LOG_FORMAT", "json")
			t.Setenv("WALLETMATCH_WEIGHTS__BALANCE", "3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.AnchorCap, convey.ShouldEqual, 25)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Weights, convey.ShouldResemble, map[string]int{"balance": 3})
				convey.So(cfg.LogTopN, convey.ShouldEqual, 10) // default
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
anchor_cap: 0
worker_count: 8
log_top_n: 3
metrics_file: run.prom
weights:
  platform_avg: 5
  nft_overlap: 1
`)
			t.Setenv("WALLETMATCH_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.AnchorCap, convey.ShouldEqual, 0)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.LogTopN, convey.ShouldEqual, 3)
				convey.So(cfg.MetricsFile, convey.ShouldEqual, "run.prom")
				convey.So(cfg.Weights, convey.ShouldResemble, map[string]int{"platform_avg": 5, "nft_overlap": 1})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, "worker_count: 8\nlog_top_n: 3\n")
			t.Setenv("WALLETMATCH_CONFIG", path)
			t.Setenv("WALLETMATCH_WORKER_COUNT", "2")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2) // env
				convey.So(cfg.LogTopN, convey.ShouldEqual, 3)     // file
			})
		})

		convey.Convey("When a .env file is present in the working directory", func() {
			err := os.WriteFile(".env", []byte("WALLETMATCH_LOG_LEVEL=debug\n"), 0o600)
			convey.So(err, convey.ShouldBeNil)
			t.Cleanup(func() { _ = os.Unsetenv("WALLETMATCH_LOG_LEVEL") })

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values are picked up", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When loading config with an invalid YAML file", func() {
			t.Setenv("WALLETMATCH_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-existent file", func() {
			t.Setenv("WALLETMATCH_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with zero workers", func() {
			t.Setenv("WALLETMATCH_WORKER_COUNT", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "worker_count")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walletmatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WALLETMATCH_CONFIG",
		"WALLETMATCH_LOG_LEVEL",
		"WALLETMATCH_LOG_FORMAT",
		"WALLETMATCH_ANCHOR_CAP",
		"WALLETMATCH_WORKER_COUNT",
		"WALLETMATCH_QUEUE_SIZE",
		"WALLETMATCH_LOG_TOP_N",
		"WALLETMATCH_METRICS_FILE",
		"WALLETMATCH_WEIGHTS__BALANCE",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
