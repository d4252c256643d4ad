package export

import (
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the monthly report over the admin API
type Handler struct {
	exporter *MonthlyExporter
	logger   *zap.Logger
}

// NewHandler creates the report download handler
func NewHandler(exporter *MonthlyExporter, logger *zap.Logger) *Handler {
	return &Handler{exporter: exporter, logger: logger}
}

// Download generates the report for /admin/reports/:year/:month and
// streams the spreadsheet back
func (h *Handler) Download(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 2000 || year > 2100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return
	}

	monthNum, err := strconv.Atoi(c.Param("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return
	}

	path, err := h.exporter.Generate(year, time.Month(monthNum))
	if err != nil {
		h.logger.Error("Report generation failed",
			zap.Int("year", year),
			zap.Int("month", monthNum),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report generation failed"})
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}
