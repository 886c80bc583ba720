// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config contains the bridge configuration.  Values come from the
// environment (optionally loaded from the .env files), can be overridden
// with the command line flags, and the API limits can be tuned with a TOML
// file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rusq/osenv/v2"

	"github.com/rusq/slackbridge/internal/network"
)

// Environment variables.
const (
	EnvPort      = "PORT"
	EnvToken     = "SLACK_BOT_TOKEN"
	EnvChannel   = "SLACK_DEFAULT_CHANNEL_NAME"
	EnvConfig    = "SLACKBRIDGE_CONFIG"
	EnvLogFile   = "LOG_FILE"
	EnvTraceFile = "TRACE_FILE"
	EnvDebug     = "DEBUG"
	EnvJSONLog   = "JSON_LOG"
)

const (
	DefPort    = 3000
	DefChannel = "general"
)

// Secrets defines the names of the supported secret files that we load our
// secrets from.
var Secrets = []string{".env", ".env.txt", "secrets.txt"}

// ErrConfigInvalid is returned when the configuration fails validation.
var ErrConfigInvalid = errors.New("configuration error")

// Config is the bridge configuration.
type Config struct {
	Port    int    `env:"PORT" validate:"gte=1,lte=65535"`
	Token   string `env:"SLACK_BOT_TOKEN" validate:"required"`
	Channel string `env:"SLACK_DEFAULT_CHANNEL_NAME" validate:"required"`

	// LimitsFile is the optional TOML file with the API limits overrides.
	LimitsFile string `env:"SLACKBRIDGE_CONFIG"`
	Limits     network.Limits

	LogFile   string
	TraceFile string
	JSONLog   bool
	Verbose   bool
}

// LoadSecrets loads the environment variables from the files, if they exist.
func LoadSecrets(files []string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Flags registers the command line flags on fs.  The defaults are taken from
// the environment, the token is removed from the environment once read.
func (c *Config) Flags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", osenv.Value(EnvPort, DefPort), "listening `port` (environment: "+EnvPort+")")
	fs.StringVar(&c.Token, "token", osenv.Secret(EnvToken, ""), "Slack bot `token` (environment: "+EnvToken+")")
	fs.StringVar(&c.Channel, "channel", osenv.Value(EnvChannel, DefChannel), "target channel `name` (environment: "+EnvChannel+")")
	fs.StringVar(&c.LimitsFile, "config", osenv.Value(EnvConfig, ""), "API limits configuration `file` (TOML)")
	fs.StringVar(&c.LogFile, "log", osenv.Value(EnvLogFile, ""), "log `file`, if not specified, messages are printed to STDERR")
	fs.StringVar(&c.TraceFile, "trace", osenv.Value(EnvTraceFile, ""), "trace `filename`")
	fs.BoolVar(&c.JSONLog, "log-json", osenv.Value(EnvJSONLog, false), "log in JSON format")
	fs.BoolVar(&c.Verbose, "v", osenv.Value(EnvDebug, false), "verbose messages")
}

// Load finalises the configuration: loads the limits file, if set, and
// validates the result.
func (c *Config) Load() error {
	c.Limits = network.DefLimits
	if c.LimitsFile != "" {
		lim, err := LoadLimits(c.LimitsFile, network.DefLimits)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfigInvalid, c.LimitsFile, err)
		}
		c.Limits = lim
	}
	return c.Validate()
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}()

// Validate validates the configuration.  All problems are reported in a
// single error.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var vErr validator.ValidationErrors
		if !errors.As(err, &vErr) {
			return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
		}
		msgs := make([]string, 0, len(vErr))
		for _, fe := range vErr {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(msgs, "; "))
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is not set"
	default:
		return fmt.Sprintf("%s: invalid value %v (%s=%s)", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	}
}

// Addr returns the listening address.
func (c *Config) Addr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// LoadLimits reads the limits from the TOML file.  Values that are not set
// in the file are taken from base.  Unknown keys are an error.
func LoadLimits(filename string, base network.Limits) (network.Limits, error) {
	lim := base
	md, err := toml.DecodeFile(filename, &lim)
	if err != nil {
		return base, err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return base, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := lim.Validate(); err != nil {
		return base, err
	}
	return lim, nil
}
