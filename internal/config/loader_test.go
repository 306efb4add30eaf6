package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/crossfire/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crossfire.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	Convey("Given no file and no CROSSFIRE_ variables", t, func() {
		cfg, err := config.Load(context.Background())

		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":9080")
		So(cfg.APIKey, ShouldBeEmpty)
		So(cfg.Shard, ShouldEqual, "steam")
		So(cfg.RateLimitRequests, ShouldEqual, 10)
		So(cfg.RateLimitWindow, ShouldEqual, time.Minute)
		So(cfg.MatchLimit, ShouldEqual, 0)

		Convey("The missing key only surfaces through RequireCredential", func() {
			So(errors.Is(cfg.RequireCredential(), config.ErrMissingCredential), ShouldBeTrue)
		})
	})
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CROSSFIRE_ADDR", ":8080")
	t.Setenv("CROSSFIRE_API_KEY", "secret")
	t.Setenv("CROSSFIRE_RATE_LIMIT_REQUESTS", "5")
	t.Setenv("CROSSFIRE_RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CROSSFIRE_DISPLAY_TIME_ZONE", "Europe/Berlin")
	t.Setenv("CROSSFIRE_MATCH_LIMIT", "20")

	Convey("Given CROSSFIRE_ variables", t, func() {
		cfg, err := config.Load(context.Background())

		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":8080")
		So(cfg.RequireCredential(), ShouldBeNil)
		So(cfg.RateLimitRequests, ShouldEqual, 5)
		So(cfg.RateLimitWindow, ShouldEqual, 30*time.Second)
		So(cfg.MatchLimit, ShouldEqual, 20)

		loc, err := cfg.Location()
		So(err, ShouldBeNil)
		So(loc.String(), ShouldEqual, "Europe/Berlin")
	})
}

func TestLoadFileUnderEnvironment(t *testing.T) {
	t.Setenv("CROSSFIRE_CONFIG", writeConfig(t, `
addr: ":9090"
shard: "kakao"
rate_limit_requests: 8
request_timeout: 45s
`))
	t.Setenv("CROSSFIRE_ADDR", ":8081")

	Convey("Given a YAML file and an overlapping variable", t, func() {
		cfg, err := config.Load(context.Background())

		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":8081")
		So(cfg.Shard, ShouldEqual, "kakao")
		So(cfg.RateLimitRequests, ShouldEqual, 8)
		So(cfg.RequestTimeout, ShouldEqual, 45*time.Second)
		So(cfg.RateLimitWindow, ShouldEqual, time.Minute)
	})
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		file    string
		wantErr error
		message string
	}{
		{name: "broken yaml", file: `invalid: yaml: content: [`, wantErr: config.ErrLoadConfig},
		{name: "missing file", env: map[string]string{"CROSSFIRE_CONFIG": "/non/existent/file.yaml"}, wantErr: config.ErrLoadConfig},
		{name: "empty addr", env: map[string]string{"CROSSFIRE_ADDR": ""}, wantErr: config.ErrInvalidConfig, message: "addr must not be empty"},
		{name: "non-numeric quota", env: map[string]string{"CROSSFIRE_RATE_LIMIT_REQUESTS": "lots"}, wantErr: config.ErrLoadConfig},
		{name: "zero quota", env: map[string]string{"CROSSFIRE_RATE_LIMIT_REQUESTS": "0"}, wantErr: config.ErrInvalidConfig, message: "rate_limit_requests"},
		{name: "negative match limit", env: map[string]string{"CROSSFIRE_MATCH_LIMIT": "-1"}, wantErr: config.ErrInvalidConfig, message: "match_limit"},
		{name: "unknown zone", env: map[string]string{"CROSSFIRE_DISPLAY_TIME_ZONE": "Mars/Olympus"}, wantErr: config.ErrInvalidConfig, message: "display_time_zone"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if tc.file != "" {
				t.Setenv("CROSSFIRE_CONFIG", writeConfig(t, tc.file))
			}

			Convey("Load fails with "+tc.wantErr.Error(), t, func() {
				cfg, err := config.Load(context.Background())
				So(cfg, ShouldBeNil)
				So(errors.Is(err, tc.wantErr), ShouldBeTrue)
				if tc.message != "" {
					So(err.Error(), ShouldContainSubstring, tc.message)
				}
			})
		})
	}
}
