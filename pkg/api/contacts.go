package api

import (
	"context"

	"github.com/pkg/errors"
)

// ContactPatch is the sparse data object of a batch update. Nil pointers mean
// "no change"; the backend never interprets an omitted field as "clear".
type ContactPatch struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	AcceptsMsg *bool   `json:"acceptAudioMessage,omitempty"`
	Active     *bool   `json:"active,omitempty"`
	QueueID    *int64  `json:"queueId,omitempty"`
}

type batchUpdateRequest struct {
	ContactIDs []int64      `json:"contactIds"`
	Data       ContactPatch `json:"data"`
}

// BatchUpdateContacts applies the same sparse patch to every listed contact.
func (c *Client) BatchUpdateContacts(ctx context.Context, contactIDs []int64, patch ContactPatch) error {
	if len(contactIDs) == 0 {
		return errors.New("api: batch update requires at least one contact id")
	}
	return c.post(ctx, "/contacts/batch-update", batchUpdateRequest{ContactIDs: contactIDs, Data: patch}, nil)
}
