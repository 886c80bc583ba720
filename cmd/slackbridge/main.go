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

// Command slackbridge is a WebSocket tool server that posts messages to a
// Slack channel on behalf of its clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rusq/slackbridge/internal/client"
	"github.com/rusq/slackbridge/internal/config"
	"github.com/rusq/slackbridge/internal/event"
	"github.com/rusq/slackbridge/internal/resolver"
	"github.com/rusq/slackbridge/internal/router"
	"github.com/rusq/slackbridge/internal/server"
)

var build = "dev"

func main() {
	os.Exit(int(slackbridge(os.Args[1:])))
}

// slackbridge runs the program and returns the exit status.
func slackbridge(args []string) StatusCode {
	config.LoadSecrets(config.Secrets)

	var (
		cfg          config.Config
		printVersion bool
	)
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"slackbridge, %s\n"+
				"Serves the post_slack_message tool over WebSocket and posts the\n"+
				"messages to the default Slack channel.\n\n"+
				"Usage: %s [flags]\n\n", build, fs.Name())
		fs.PrintDefaults()
	}
	cfg.Flags(fs)
	fs.BoolVar(&printVersion, "V", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return SHelpRequested
		}
		return SInvalidParameters
	}
	if printVersion {
		fmt.Println(build)
		return SNoError
	}

	lg, stopLog, err := initLog(cfg.LogFile, cfg.JSONLog, cfg.Verbose)
	if err != nil {
		slog.Error("unable to initialise logging", "error", err)
		return SInitializationError
	}
	defer stopLog()
	stopTrace := initTrace(cfg.TraceFile)
	defer stopTrace()

	if err := cfg.Load(); err != nil {
		lg.Error("startup aborted", "error", err)
		return SInvalidParameters
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		lg.Error("unable to listen", "addr", cfg.Addr(), "error", err)
		return SInitializationError
	}
	if err := run(ctx, &cfg, l, lg); err != nil {
		lg.Error("server error", "error", err)
		return SApplicationError
	}
	return SNoError
}

// run wires the components and serves on l until ctx is cancelled.  The
// channel resolution starts together with the server, so the clients may
// connect and send requests before it completes.
func run(ctx context.Context, cfg *config.Config, l net.Listener, lg *slog.Logger, opts ...client.Option) error {
	sink := event.Logger{L: lg}

	cl := client.New(cfg.Token, append([]client.Option{client.WithLimits(cfg.Limits), client.WithLogger(lg)}, opts...)...)
	st := resolver.NewState(cfg.Channel)
	res := resolver.New(st, cl, resolver.WithLogger(lg), resolver.WithSink(sink))
	srv := server.New(
		router.New(st, cl, router.WithLogger(lg)),
		st,
		server.WithLogger(lg),
		server.WithSink(sink),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, l)
	})
	g.Go(func() error {
		res.Resolve(gctx)
		return nil
	})
	return g.Wait()
}
