package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-report-bot/internal/collector"
	"github.com/tbourn/go-report-bot/internal/services"
)

// CollectResponse summarizes a manual collect pass.
type CollectResponse struct {
	Fetched     int   `json:"fetched"`
	Cursor      int64 `json:"cursor"`
	Submissions int   `json:"submissions"`
	Accepted    int   `json:"accepted"`
	Duplicate   int   `json:"duplicate"`
	Malformed   int   `json:"malformed"`
	AlreadySeen int   `json:"already_seen"`
	Failed      int   `json:"failed"`
	Replies     int   `json:"replies"`
}

func collectResponse(r collector.PassResult) CollectResponse {
	return CollectResponse{
		Fetched:     r.Fetched,
		Cursor:      r.Cursor,
		Submissions: r.Submissions,
		Accepted:    r.Accepted,
		Duplicate:   r.Duplicate,
		Malformed:   r.Malformed,
		AlreadySeen: r.AlreadySeen,
		Failed:      r.Failed,
		Replies:     r.Replies,
	}
}

// Collect serves POST /collect: runs one pass through the same engine the
// scheduler uses.
func (h *Handlers) Collect(c *gin.Context) {
	res, err := h.collectSvc.Collect(c.Request.Context())
	switch {
	case errors.Is(err, services.ErrCollectBusy):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, collector.ErrTransport):
		fail(c, http.StatusBadGateway, ErrCodeCollectFailed, err.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeCollectFailed, err.Error())
	default:
		ok(c, http.StatusOK, collectResponse(res))
	}
}
