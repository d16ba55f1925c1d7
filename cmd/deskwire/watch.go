package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deskwire/deskwire/pkg/bus"
	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/session"
	"github.com/deskwire/deskwire/pkg/store"
)

// viewDump is the line format watch writes on every converged change.
type viewDump struct {
	TicketID int64                   `json:"ticketId"`
	Messages []model.Message         `json:"messages"`
	Pending  []*store.PendingMessage `json:"pending,omitempty"`
	HasMore  bool                    `json:"hasMore"`
}

func watchCmd() *cobra.Command {
	var ticketID int64
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep one ticket's conversation converged and stream view updates as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticketID <= 0 {
				return errors.New("--ticket is required")
			}
			ctx := cmd.Context()

			apiClient, err := newAPIClient()
			if err != nil {
				return err
			}
			socketClient, err := newSocketClient()
			if err != nil {
				return err
			}
			resumeStore, err := newResumeStore()
			if err != nil {
				return err
			}
			defer func() { _ = resumeStore.Close() }()
			b, err := newBus()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			sess, err := session.NewMessageSession(session.MessageSessionConfig{
				CompanyID:     cfg.CompanyID,
				TicketID:      ticketID,
				API:           apiClient,
				Transport:     socketClient,
				Resume:        resumeStore,
				Bus:           b,
				Debounce:      cfg.Sync.Debounce.Std(),
				RecoveryDelay: cfg.Sync.RecoveryDelay.Std(),
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				err := socketClient.Run(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				waitConnected(gctx, socketClient, cfg.Socket.ReconnectMax.Std())
				if err := sess.Start(gctx); err != nil {
					return err
				}
				defer sess.Close()

				signals, err := b.Subscribe(gctx, bus.SignalMessagesReady)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				for {
					select {
					case <-gctx.Done():
						return nil
					case _, ok := <-signals:
						if !ok {
							return nil
						}
						v := sess.View()
						if err := enc.Encode(viewDump{
							TicketID: ticketID,
							Messages: v.Primary,
							Pending:  v.Pending,
							HasMore:  sess.HasMore(),
						}); err != nil {
							return err
						}
					}
				}
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info().Msg("watch stopped")
			return nil
		},
	}
	cmd.Flags().Int64VarP(&ticketID, "ticket", "t", 0, "ticket id to watch")
	return cmd
}
