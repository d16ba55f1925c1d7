package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/deskwire/deskwire/pkg/model"
)

// TicketsQuery is the filter parameter set of the triage list. The zero value
// fetches the first page of every visible ticket.
type TicketsQuery struct {
	SearchParam string
	PageNumber  int
	Status      string
	ShowAll     bool
	WithUnread  bool
	QueueIDs    []int64
	Tags        []int64
	Users       []int64
}

func (q TicketsQuery) values() url.Values {
	v := url.Values{}
	if q.SearchParam != "" {
		v.Set("searchParam", q.SearchParam)
	}
	page := q.PageNumber
	if page < 1 {
		page = 1
	}
	v.Set("pageNumber", strconv.Itoa(page))
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.ShowAll {
		v.Set("showAll", "true")
	}
	if q.WithUnread {
		v.Set("withUnreadMessages", "true")
	}
	setIDList(v, "queueIds", q.QueueIDs)
	setIDList(v, "tags", q.Tags)
	setIDList(v, "users", q.Users)
	return v
}

// The backend expects id filters as JSON arrays in a single query parameter.
func setIDList(v url.Values, key string, ids []int64) {
	if len(ids) == 0 {
		return
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return
	}
	v.Set(key, string(b))
}

// TicketsPage is one page of the filtered ticket list.
type TicketsPage struct {
	Tickets []model.Ticket `json:"tickets"`
	Count   int            `json:"count"`
	HasMore bool           `json:"hasMore"`
}

// FetchTickets retrieves one page of tickets for a filter set.
func (c *Client) FetchTickets(ctx context.Context, query TicketsQuery) (*TicketsPage, error) {
	out := &TicketsPage{}
	if err := c.get(ctx, "/tickets", query.values(), out); err != nil {
		return nil, err
	}
	return out, nil
}
