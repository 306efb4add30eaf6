package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/crossfire/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.RateLimitRequests, convey.ShouldEqual, 10)
			convey.So(cfg.RateLimitWindow, convey.ShouldEqual, time.Minute)
			convey.So(cfg.Shard, convey.ShouldEqual, "steam")
			convey.So(cfg.DisplayTimeZone, convey.ShouldEqual, "UTC")
			convey.So(cfg.MatchLimit, convey.ShouldEqual, 0)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the credential is reported missing", func() {
			convey.So(errors.Is(cfg.RequireCredential(), config.ErrMissingCredential), convey.ShouldBeTrue)
			cfg.APIKey = "k"
			convey.So(cfg.RequireCredential(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid fields", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"zero quota", func(c *config.Config) { c.RateLimitRequests = 0 }},
			{"zero window", func(c *config.Config) { c.RateLimitWindow = 0 }},
			{"negative limit", func(c *config.Config) { c.MatchLimit = -1 }},
			{"negative timeout", func(c *config.Config) { c.RequestTimeout = -time.Second }},
			{"unknown zone", func(c *config.Config) { c.DisplayTimeZone = "Mars/Olympus" }},
			{"empty shard", func(c *config.Config) { c.Shard = "" }},
		}
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" is rejected", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
