package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/store"
)

type messagesDump struct {
	Ticket    *model.Ticket              `json:"ticket,omitempty"`
	Messages  []model.Message            `json:"messages"`
	Reactions map[string][]model.Message `json:"reactions,omitempty"`
	HasMore   bool                       `json:"hasMore"`
}

func messagesCmd() *cobra.Command {
	var (
		ticketID int64
		pages    int
		search   string
	)
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Dump a ticket's reconciled conversation as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticketID <= 0 {
				return errors.New("--ticket is required")
			}
			ctx := cmd.Context()
			apiClient, err := newAPIClient()
			if err != nil {
				return err
			}

			if search != "" {
				res, err := apiClient.SearchMessages(ctx, ticketID, search)
				if err != nil {
					return err
				}
				return json.NewEncoder(os.Stdout).Encode(messagesDump{Messages: res.Messages})
			}

			list := store.NewMessageList()
			var ticket *model.Ticket
			hasMore := false
			for page := 1; page <= pages; page++ {
				resp, err := apiClient.FetchMessages(ctx, ticketID, page)
				if err != nil {
					return err
				}
				list.LoadPage(resp.Messages)
				if resp.Ticket != nil {
					ticket = resp.Ticket
				}
				hasMore = resp.HasMore
				if !hasMore {
					break
				}
			}

			view := store.BuildMessageView(list.Snapshot(), nil)
			return json.NewEncoder(os.Stdout).Encode(messagesDump{
				Ticket:    ticket,
				Messages:  view.Primary,
				Reactions: view.ReactionsByParent,
				HasMore:   hasMore,
			})
		},
	}
	cmd.Flags().Int64VarP(&ticketID, "ticket", "t", 0, "ticket id")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to fetch")
	cmd.Flags().StringVar(&search, "search", "", "search within the conversation instead of dumping")
	return cmd
}
