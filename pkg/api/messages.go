package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/deskwire/deskwire/pkg/model"
)

// MessagesPage is one page of a ticket's conversation, newest page first.
type MessagesPage struct {
	Messages []model.Message `json:"messages"`
	Ticket   *model.Ticket   `json:"ticket"`
	HasMore  bool            `json:"hasMore"`
}

// FetchMessages retrieves one page of messages for a ticket.
func (c *Client) FetchMessages(ctx context.Context, ticketID int64, pageNumber int) (*MessagesPage, error) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(pageNumber))
	out := &MessagesPage{}
	if err := c.get(ctx, fmt.Sprintf("/messages/%d", ticketID), q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MessageSearchResult is the response of the in-conversation search endpoint.
type MessageSearchResult struct {
	Messages []model.Message `json:"messages"`
	Count    int             `json:"count"`
}

// SearchMessages searches within one ticket's conversation.
func (c *Client) SearchMessages(ctx context.Context, ticketID int64, query string) (*MessageSearchResult, error) {
	q := url.Values{}
	q.Set("query", query)
	out := &MessageSearchResult{}
	if err := c.get(ctx, fmt.Sprintf("/messages/%d/search", ticketID), q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessageRequest is the payload for creating a message on a ticket.
type SendMessageRequest struct {
	Body         string `json:"body"`
	QuotedMsgID  int64  `json:"quotedMsgId,omitempty"`
	FromMe       bool   `json:"fromMe"`
	Read         bool   `json:"read"`
	MediaURL     string `json:"mediaUrl,omitempty"`
	MediaType    string `json:"mediaType,omitempty"`
	IsForwarded  bool   `json:"isForwarded,omitempty"`
	InternalNote bool   `json:"isPrivate,omitempty"`
}

// SendMessage posts a new message to a ticket and returns the server-confirmed
// entity carrying the real id.
func (c *Client) SendMessage(ctx context.Context, ticketID int64, req SendMessageRequest) (*model.Message, error) {
	out := &model.Message{}
	if err := c.post(ctx, fmt.Sprintf("/messages/%d", ticketID), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchMessagesAfter retrieves messages created after the given id, the REST
// side of missed-event recovery.
func (c *Client) FetchMessagesAfter(ctx context.Context, ticketID, lastID int64) ([]model.Message, error) {
	q := url.Values{}
	q.Set("afterId", strconv.FormatInt(lastID, 10))
	out := &MessagesPage{}
	if err := c.get(ctx, fmt.Sprintf("/messages/%d", ticketID), q, out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}
