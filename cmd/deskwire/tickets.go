package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deskwire/deskwire/pkg/api"
	"github.com/deskwire/deskwire/pkg/bus"
	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/session"
)

type feedDump struct {
	Tickets []model.Ticket `json:"tickets"`
	Unread  int            `json:"unread"`
	HasMore bool           `json:"hasMore"`
}

func ticketsCmd() *cobra.Command {
	var (
		status     string
		search     string
		showAll    bool
		withUnread bool
		queueIDs   []int64
		watch      bool
	)
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Fetch the filtered ticket list, optionally keeping it live",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := api.TicketsQuery{
				SearchParam: search,
				Status:      status,
				ShowAll:     showAll,
				WithUnread:  withUnread,
				QueueIDs:    queueIDs,
			}

			apiClient, err := newAPIClient()
			if err != nil {
				return err
			}

			if !watch {
				page, err := apiClient.FetchTickets(ctx, query)
				if err != nil {
					return err
				}
				return json.NewEncoder(os.Stdout).Encode(feedDump{
					Tickets: page.Tickets,
					HasMore: page.HasMore,
				})
			}

			socketClient, err := newSocketClient()
			if err != nil {
				return err
			}
			b, err := newBus()
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			feed, err := session.NewTicketFeed(session.TicketFeedConfig{
				CompanyID: cfg.CompanyID,
				Query:     query,
				API:       apiClient,
				Transport: socketClient,
				Bus:       b,
				Debounce:  cfg.Sync.Debounce.Std(),
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
				if err := feed.Start(gctx); err != nil {
					return err
				}
				defer feed.Close()

				signals, err := b.Subscribe(gctx, bus.SignalTicketsChanged)
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
						if err := enc.Encode(feedDump{
							Tickets: feed.View(),
							Unread:  feed.UnreadCount(),
							HasMore: feed.HasMore(),
						}); err != nil {
							return err
						}
					}
				}
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by ticket status (open, pending, closed)")
	cmd.Flags().StringVar(&search, "search", "", "free-text search parameter")
	cmd.Flags().BoolVar(&showAll, "show-all", false, "include tickets assigned to other users")
	cmd.Flags().BoolVar(&withUnread, "with-unread", false, "only tickets with unread messages")
	cmd.Flags().Int64SliceVar(&queueIDs, "queues", nil, "filter by queue ids")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep the list live and stream updates")
	return cmd
}
