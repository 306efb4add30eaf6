package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/okian/crossfire/internal/adapters/http/api"
	"github.com/okian/crossfire/internal/adapters/stream"
	"github.com/okian/crossfire/internal/domain/model"
	"github.com/okian/crossfire/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:9080"

func newWatchCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "watch <player> <opponent>",
		Short: "Follow a correlation served by a running crossfire server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return err
			}
			return watch(ctx, http.DefaultClient, server, args[0], args[1], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&server, "server", defaultServer, "crossfire server base URL")
	return cmd
}

// watch requests a correlation stream and prints each record as it arrives.
// It returns errRunFailed when the stream ends with an error record and an
// error when it ends without a terminal record at all.
func watch(ctx context.Context, hc *http.Client, server, player, opponent string, out io.Writer) error {
	q := url.Values{}
	q.Set("player", player)
	q.Set("opponent", opponent)
	endpoint := strings.TrimRight(server, "/") + "/correlate?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", stream.ContentType)
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	logger.Get().Debug(ctx, "watching run", logger.String("run_id", resp.Header.Get(api.RunIDHeader)))

	var matches, interactions int
	dec := stream.NewDecoder(resp.Body, stream.WithDecoderLogger(logger.Named("watch")))
	for {
		m, err := dec.Next(ctx)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("stream ended without completion (HTTP %d)", resp.StatusCode)
		}
		if err != nil {
			return err
		}
		printRecord(out, m)

		switch m.Kind {
		case stream.KindMatch:
			matches++
			interactions += len(m.Match.Interactions)
		case stream.KindFailure:
			return errRunFailed
		case stream.KindDone:
			fmt.Fprintf(out, "Done: %s with %s\n",
				english.Plural(matches, "shared match", "shared matches"),
				english.Plural(interactions, "interaction", "interactions"))
			return nil
		}
	}
}

// printRecord renders one record for a terminal.
func printRecord(out io.Writer, m stream.Message) {
	switch m.Kind {
	case stream.KindProgress:
		fmt.Fprintf(out, "... %s\n", m.Text)
	case stream.KindFailure:
		fmt.Fprintf(out, "error: %s\n", m.Text)
	case stream.KindMatch:
		s := m.Match
		fmt.Fprintf(out, "Match %s on %s, %s\n", s.ID, s.Map, s.StartedAt)
		if len(s.Interactions) == 0 {
			fmt.Fprintln(out, "    no direct interactions")
		}
		for _, it := range s.Interactions {
			fmt.Fprintf(out, "    %s\n", describe(it))
		}
	}
}

func describe(it model.Interaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-14s %s -> %s", it.Timestamp.Format("15:04:05"), it.Type, it.Details.Attacker, it.Details.Victim)
	if it.Details.Damage != nil {
		fmt.Fprintf(&b, " %s dmg", humanize.FormatFloat("#.#", *it.Details.Damage))
	}
	if it.Details.Cause != "" {
		fmt.Fprintf(&b, " (%s)", it.Details.Cause)
	}
	return b.String()
}
