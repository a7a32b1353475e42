package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-report-bot/internal/domain"
	"github.com/tbourn/go-report-bot/internal/services"
	"github.com/tbourn/go-report-bot/internal/utils"
)

// ListRecordsResponse contains a page of records and pagination metadata.
type ListRecordsResponse struct {
	Records    []domain.Record `json:"records"`
	Pagination Pagination      `json:"pagination"`
}

// ListRecords serves GET /records?day=YYYY-MM-DD&page=&page_size=.
// Records are returned newest first. A weak ETag derived from the count and
// latest acceptance time allows conditional requests.
func (h *Handlers) ListRecords(c *gin.Context) {
	ctx := c.Request.Context()
	day := strings.TrimSpace(c.Query("day"))

	// ETag pre-check (best effort).
	count, maxTS, err := h.recSvc.Stats(ctx, day)
	if errors.Is(err, services.ErrInvalidDay) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"records:%s:%d:%d"`, day, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, pageSize, _ := utils.Paginate(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize),
	)

	items, total, err := h.recSvc.ListPage(ctx, day, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDay) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListRecordsResponse{
		Records: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
