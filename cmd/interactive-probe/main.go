// Command interactive-probe connects to an interactive service as a game
// client and inspects the session.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaefGAMES/StreamingClientLibrary/interactive"
	"github.com/KaefGAMES/StreamingClientLibrary/socket"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// probeFlags are the persistent flags shared by every subcommand.
type probeFlags struct {
	endpoints []string
	token     string
	versionID string
	verbose   bool
	timeout   time.Duration
}

func main() {
	flags := &probeFlags{}

	rootCmd := &cobra.Command{
		Use:   "interactive-probe",
		Short: "Inspect an interactive session as a game client",
		Long: `interactive-probe connects to an interactive service with a game client
token, completes the hello and ready handshake and runs one command.

Endpoints and the token can also be given with INTERACTIVE_ENDPOINTS
(comma separated) and INTERACTIVE_TOKEN.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringArrayVarP(&flags.endpoints, "endpoint", "e", nil, "Service endpoint URL (repeatable)")
	pf.StringVarP(&flags.token, "token", "t", "", "Game client auth token")
	pf.StringVar(&flags.versionID, "version-id", "", "Interactive project version id")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log protocol traffic to stderr")
	pf.DurationVar(&flags.timeout, "timeout", 10*time.Second, "Timeout for connecting and for each request")

	rootCmd.AddCommand(
		timeCmd(flags),
		scenesCmd(flags),
		participantsCmd(flags),
		watchCmd(flags),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// resolve fills unset flags from the environment.
func (f *probeFlags) resolve() error {
	if len(f.endpoints) == 0 {
		for _, e := range strings.Split(os.Getenv("INTERACTIVE_ENDPOINTS"), ",") {
			if e = strings.TrimSpace(e); e != "" {
				f.endpoints = append(f.endpoints, e)
			}
		}
	}
	if f.token == "" {
		f.token = os.Getenv("INTERACTIVE_TOKEN")
	}

	if len(f.endpoints) == 0 {
		return errors.New("no endpoint: use --endpoint or INTERACTIVE_ENDPOINTS")
	}
	if f.token == "" {
		return errors.New("no token: use --token or INTERACTIVE_TOKEN")
	}
	return nil
}

func (f *probeFlags) logger() *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// connect builds a client from the flags and brings it to ready.
func (f *probeFlags) connect(ctx context.Context, opts ...socket.Option) (*interactive.Client, error) {
	if err := f.resolve(); err != nil {
		return nil, err
	}

	base := []socket.Option{
		socket.WithLogger(f.logger()),
		socket.WithConnectTimeout(f.timeout),
		socket.WithReadyTimeout(f.timeout),
		socket.WithRequestTimeout(f.timeout),
	}
	client, err := interactive.New(f.endpoints, f.token, f.versionID, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.Ready(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
