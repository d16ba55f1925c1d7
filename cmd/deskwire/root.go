package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deskwire/deskwire/pkg/api"
	"github.com/deskwire/deskwire/pkg/bus"
	"github.com/deskwire/deskwire/pkg/config"
	"github.com/deskwire/deskwire/pkg/logging"
	"github.com/deskwire/deskwire/pkg/resume"
	"github.com/deskwire/deskwire/pkg/socket"
)

var (
	flagConfig   string
	flagLogLevel string

	cfg *config.Config
)

func rootContext() context.Context {
	return context.Background()
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deskwire",
		Short: "Live ticket and conversation sync client for the CRM backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagLogLevel != "" {
				loaded.LogLevel = flagLogLevel
			}
			if err := logging.Setup(loaded.LogLevel); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(watchCmd())
	cmd.AddCommand(ticketsCmd())
	cmd.AddCommand(messagesCmd())
	cmd.AddCommand(contactsCmd())
	return cmd
}

func newAPIClient() (*api.Client, error) {
	return api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout.Std(),
	})
}

func newSocketClient() (*socket.Client, error) {
	if cfg.Socket.URL == "" {
		return nil, errors.New("socket.url is required for live commands (or DESKWIRE_SOCKET_URL)")
	}
	return socket.NewClient(socket.Config{
		URL:          cfg.Socket.URL,
		Token:        cfg.API.Token,
		ReconnectMin: cfg.Socket.ReconnectMin.Std(),
		ReconnectMax: cfg.Socket.ReconnectMax.Std(),
	})
}

func newResumeStore() (resume.Store, error) {
	if cfg.Resume.Path == "" {
		return resume.NewMemoryStore(), nil
	}
	return resume.OpenSQLite(cfg.Resume.Path)
}

func newBus() (*bus.Bus, error) {
	if cfg.Redis.Enabled {
		return bus.NewRedis(bus.RedisSettings{
			Enabled:  true,
			Addr:     cfg.Redis.Addr,
			Group:    cfg.Redis.Group,
			Consumer: cfg.Redis.Consumer,
		})
	}
	return bus.NewInProcess(), nil
}

// waitConnected gives the socket a moment to come up before the first join,
// so the usual case starts joined instead of waiting for the first lifecycle
// event.
func waitConnected(ctx context.Context, sc *socket.Client, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sc.Connected() || ctx.Err() != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
