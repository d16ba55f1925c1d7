package main

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deskwire/deskwire/pkg/api"
)

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Contact operations",
	}
	cmd.AddCommand(contactsUpdateBatchCmd())
	return cmd
}

func contactsUpdateBatchCmd() *cobra.Command {
	var (
		ids     []int64
		name    string
		email   string
		active  string
		queueID int64
	)
	cmd := &cobra.Command{
		Use:   "update-batch",
		Short: "Apply the same sparse patch to a set of contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) == 0 {
				return errors.New("--ids is required")
			}
			patch := api.ContactPatch{}
			changed := false
			if cmd.Flags().Changed("name") {
				patch.Name = &name
				changed = true
			}
			if cmd.Flags().Changed("email") {
				patch.Email = &email
				changed = true
			}
			if cmd.Flags().Changed("active") {
				v := active == "true"
				patch.Active = &v
				changed = true
			}
			if cmd.Flags().Changed("queue") {
				patch.QueueID = &queueID
				changed = true
			}
			if !changed {
				return errors.New("nothing to update: pass at least one of --name, --email, --active, --queue")
			}

			apiClient, err := newAPIClient()
			if err != nil {
				return err
			}
			if err := apiClient.BatchUpdateContacts(cmd.Context(), ids, patch); err != nil {
				return err
			}
			log.Info().Ints64("ids", ids).Msg("contacts updated")
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "contact ids to update")
	cmd.Flags().StringVar(&name, "name", "", "set contact name")
	cmd.Flags().StringVar(&email, "email", "", "set contact email")
	cmd.Flags().StringVar(&active, "active", "", "set active flag (true/false)")
	cmd.Flags().Int64Var(&queueID, "queue", 0, "set default queue id")
	return cmd
}
