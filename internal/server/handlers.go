package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/deliverylens/internal/analysis"
	"github.com/KaramelBytes/deliverylens/internal/delivery"
	"github.com/KaramelBytes/deliverylens/internal/logger"
	"github.com/KaramelBytes/deliverylens/internal/pipeline"
	"github.com/KaramelBytes/deliverylens/internal/predict"
)

type analyzeResponse struct {
	ID       string                 `json:"id"`
	Report   pipeline.Report        `json:"report"`
	KPIs     delivery.KPIs          `json:"kpis"`
	Chart    []delivery.StatusCount `json:"chart"`
	Stats    *analysis.Stats        `json:"stats,omitempty"`
	Records  []delivery.Record      `json:"records"`
	Page     delivery.Page          `json:"page"`
	Warnings []string               `json:"warnings,omitempty"`
	Degraded bool                   `json:"degraded,omitempty"`
}

type summaryRequest struct {
	Anomalies  string `json:"anomalies" binding:"required"`
	TimePeriod string `json:"timePeriod"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) analyze(c *gin.Context) {
	opts := s.pipe.Options
	if v := c.Query("predict"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "predict must be true or false"})
			return
		}
		opts.Predict = b
	}
	opts.Period = c.DefaultQuery("period", opts.Period)
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	size, err := queryInt(c, "page_size", s.cfg.PageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	body, status, err := s.uploadBody(c)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	defer body.Close()

	res, err := s.pipe.RunWith(c.Request.Context(), body, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	records, p := delivery.Paginate(res.Records, page, size)
	c.JSON(http.StatusOK, analyzeResponse{
		ID:       res.ID,
		Report:   res.Report,
		KPIs:     res.KPIs,
		Chart:    res.Chart,
		Stats:    res.Stats,
		Records:  records,
		Page:     p,
		Warnings: res.Warnings,
		Degraded: res.Degraded,
	})
}

// uploadBody accepts a multipart "file" field or a raw text/csv body.
func (s *Server) uploadBody(c *gin.Context) (io.ReadCloser, int, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		fh, err := c.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
				return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.cfg.MaxUploadBytes)
			}
			return nil, http.StatusBadRequest, errors.New("file required")
		}
		ct, _, _ := mime.ParseMediaType(fh.Header.Get("Content-Type"))
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") && ct != "text/csv" {
			return nil, http.StatusUnsupportedMediaType, errors.New("please upload a CSV file")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return f, 0, nil
	case "text/csv", "text/plain", "application/csv":
		return c.Request.Body, 0, nil
	}
	return nil, http.StatusUnsupportedMediaType, errors.New("please upload a CSV file")
}

func (s *Server) predict(c *gin.Context) {
	if s.forecaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prediction service is not configured"})
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	in, err := predict.DecodeInput(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Debug("predict: %d rows (%s input)", len(in.Features), in.Kind)
	out, err := s.forecaster.Do(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) summarize(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period := req.TimePeriod
	if period == "" {
		period = "the selected period"
	}
	c.JSON(http.StatusOK, gin.H{"summary": s.advisor.Advise(c.Request.Context(), req.Anomalies, period)})
}

// fail maps pipeline and prediction errors to HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var se *predict.ServiceError
	var ue *predict.UnreachableError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &se):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "upstream_status": se.StatusCode})
	case errors.As(err, &ue):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &mbe):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes)})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		logger.Error("request %s failed: %v", c.GetString(ctxRequestID), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return i, nil
}
