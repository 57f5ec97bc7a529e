package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/KaefGAMES/StreamingClientLibrary/interactive"
	"github.com/KaefGAMES/StreamingClientLibrary/socket"
)

func timeCmd(flags *probeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "time",
		Short: "Print the server clock and the local offset",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			sent := time.Now()
			serverTime, err := client.GetTime(cmd.Context())
			if err != nil {
				return err
			}
			rtt := time.Since(sent)

			fmt.Printf("server time: %s\n", serverTime.UTC().Format(time.RFC3339Nano))
			fmt.Printf("round trip:  %s\n", rtt)
			fmt.Printf("offset:      %s\n", serverTime.Sub(sent.Add(rtt/2)))
			return nil
		},
	}
}

func scenesCmd(flags *probeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "Print every scene and its controls as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			scenes, err := client.GetScenes(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(scenes)
		},
	}
}

func participantsCmd(flags *probeFlags) *cobra.Command {
	var active time.Duration

	cmd := &cobra.Command{
		Use:   "participants",
		Short: "List connected participants, walking every page",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			if active > 0 {
				threshold := time.Now().Add(-active).UnixMilli()
				page, err := client.GetActiveParticipants(cmd.Context(), threshold)
				if err != nil {
					return err
				}
				for _, p := range page.Participants {
					printParticipant(p)
				}
				fmt.Printf("%d active of %d\n", len(page.Participants), page.Total)
				return nil
			}

			n := 0
			for p, err := range client.Participants(cmd.Context()) {
				if err != nil {
					return err
				}
				printParticipant(p)
				n++
			}
			fmt.Printf("%d participants\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&active, "active", 0, "Only list participants with input within this window")
	return cmd
}

func printParticipant(p interactive.Participant) {
	fmt.Printf("%-36s %-20s group=%-10s connected=%s\n",
		p.SessionID, p.Username, p.GroupID, p.Connected().UTC().Format(time.RFC3339))
}

func watchCmd(flags *probeFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every server push until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			metrics := socket.NewMetrics(reg, "interactive")

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				srv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
					}
				}()
				defer srv.Close()
			}

			client, err := flags.connect(cmd.Context(),
				socket.WithMetrics(metrics),
				socket.WithOnStateChange(func(sc socket.StateChange) {
					fmt.Printf("state %s -> %s %s\n", sc.From, sc.To, sc.Endpoint)
				}),
			)
			if err != nil {
				return err
			}
			defer client.Close()

			client.Socket().Subscribe(socket.AllEvents, func(name string, payload json.RawMessage) {
				fmt.Printf("%s %s %s\n", time.Now().Format(time.TimeOnly), name, payload)
			})

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, for example :9090")
	return cmd
}
