package audit

import (
	"time"

	"github.com/google/uuid"
)

// TimelineFilters holds the basic filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    *uuid.UUID
	Action   string
	Module   string
	Page     int
	PageSize int
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a page of events with its paging information.
type Result struct {
	Events []Event    `json:"events"`
	Paging PagingInfo `json:"paging"`
}
