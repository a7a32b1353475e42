package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-report-bot/internal/report"
)

// TodayReportResponse is the JSON form of today's report.
type TodayReportResponse struct {
	Report report.Report `json:"report"`
	// Messages is the report exactly as it would be sent to the chat.
	Messages []string `json:"messages"`
}

// TodayReport serves GET /report/today. With ?format=text the rendered
// report is returned as plain text.
func (h *Handlers) TodayReport(c *gin.Context) {
	r, parts, err := h.reportSvc.Today(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	if strings.EqualFold(c.Query("format"), "text") {
		c.String(http.StatusOK, strings.Join(parts, "\n"))
		return
	}
	ok(c, http.StatusOK, TodayReportResponse{Report: r, Messages: parts})
}
