package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"liveshare/config"
	"liveshare/discovery"
	"liveshare/domain"
	"liveshare/manager"
	"liveshare/websocket"
)

const quitCommand = "/quit"

var (
	listenAddr    string
	browseTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "liveshare",
	Short: "Share a live collaboration session over the network",
	Long: `Liveshare lets one participant host a live session that others join.

The host owns the roster and relays every message to all participants.
Lines typed on stdin are sent as chat messages, /quit ends the session.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Host a new session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		return run(cfg, os.Stdin, cmd.OutOrStdout(), func(m *manager.Manager) error {
			id, err := m.StartHost(cfg.ListenAddr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "join with: liveshare join %s %s\n", m.Addr(), id)
			return nil
		})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join [addr session]",
	Short: "Join a hosted session",
	Long: `Join connects to the session served at addr.

Without arguments it browses the local network over mDNS and joins the
first session it finds.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return errors.New("expected an address and a session id, or neither")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr, sessionID, err := target(cmd.Context(), cfg, args)
		if err != nil {
			return err
		}
		return run(cfg, os.Stdin, cmd.OutOrStdout(), func(m *manager.Manager) error {
			return m.Connect(cmd.Context(), addr, sessionID)
		})
	},
}

func init() {
	rootCmd.AddCommand(hostCmd, joinCmd)
	hostCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on (overrides LISTEN_ADDR)")
	joinCmd.Flags().DurationVar(&browseTimeout, "browse-timeout", 5*time.Second, "How long to browse for a session when no address is given")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	setupLogger(cfg.SlogLevel())
	return cfg, nil
}

func newManager(cfg config.Config) *manager.Manager {
	opts := manager.Options{
		BroadcastCapacity: cfg.BroadcastCapacity,
		EventCapacity:     cfg.EventCapacity,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		Transport: websocket.Options{
			WriteWait:      cfg.WriteWait,
			PongWait:       cfg.PongWait,
			MaxMessageSize: cfg.MaxMessageSize,
		},
		Metrics:        cfg.MetricsEnabled,
		AllowedOrigins: cfg.AllowedOrigins(),
	}
	if cfg.MDNSEnabled {
		opts.Announcer = discovery.NewAnnouncer(cfg.MDNSService)
	}
	return manager.New(domain.Participant{ID: cfg.ParticipantID, DisplayName: cfg.DisplayName}, opts)
}

func target(ctx context.Context, cfg config.Config, args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	ctx, cancel := context.WithTimeout(ctx, browseTimeout)
	defer cancel()

	slog.Info("browsing for sessions", "service", cfg.MDNSService, "timeout", browseTimeout)
	entry, err := discovery.First(ctx, cfg.MDNSService)
	if err != nil {
		return "", "", err
	}
	slog.Info("found session", "instance", entry.Instance, "addr", entry.Addr, "sessionId", entry.SessionID)
	return entry.Addr, entry.SessionID, nil
}

// run starts a session with start and prints its events until it ends or the
// process is signalled.
func run(cfg config.Config, in io.Reader, out io.Writer, start func(*manager.Manager) error) error {
	m := newManager(cfg)
	defer m.Close()

	events, err := m.Events()
	if err != nil {
		return err
	}
	defer events.Close()

	p := newPrinter(out, cfg.Color)
	ended := make(chan struct{})
	go func() {
		defer close(ended)
		p.follow(events)
	}()

	if err := start(m); err != nil {
		return err
	}
	go readInput(m, in, p)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		slog.Info("shutting down")
		if err := m.EndSession(); err != nil && !errors.Is(err, domain.ErrNoSession) {
			return err
		}
		<-ended
	case <-ended:
	}
	return nil
}

// readInput sends each non-empty line as a chat message until /quit or EOF.
func readInput(m *manager.Manager, in io.Reader, p *printer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == quitCommand {
			if err := m.EndSession(); err != nil {
				p.failure(err)
			}
			return
		}
		if err := m.Send(domain.Chat{SenderID: m.Self().ID, Text: line}); err != nil {
			p.failure(err)
		}
	}
}
