package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/psma-report-engine/internal/domain"
	"github.com/psma-report-engine/internal/render"
	"github.com/psma-report-engine/internal/repository"
)

// maxReportBody bounds uploaded envelope size.
const maxReportBody = 4 << 20

func (s *Server) handleListSchemas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"versions": s.registry.Versions(),
		"latest":   s.registry.Latest(),
	})
}

func (s *Server) handleGetSchema(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version must be a positive integer"})
		return
	}
	sc, err := s.registry.Resolve(version)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "schema version not found"})
			return
		}
		s.logger.WithError(err).Error("Failed to resolve schema")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve schema"})
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) handleValidateReport(c *gin.Context) {
	instance, ok := s.decodeBody(c)
	if !ok {
		return
	}
	result, err := s.validator.Validate(instance, instance.Schema())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":  result.Valid(),
		"issues": result.Issues,
	})
}

func (s *Server) handleCreateReport(c *gin.Context) {
	instance, ok := s.decodeBody(c)
	if !ok {
		return
	}

	result, err := s.validator.Validate(instance, instance.Schema())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !result.Valid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "report failed validation",
			"issues": result.Issues,
		})
		return
	}

	// Re-encode so the archive holds the canonical envelope form.
	payload, err := s.codec.Encode(instance)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode report"})
		return
	}

	rec := &repository.ReportRecord{
		SchemaVersion: instance.SchemaVersion,
		Supersedes:    c.Query("supersedes"),
		Payload:       payload,
	}
	if err := s.store.Save(c.Request.Context(), rec); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "superseded report does not exist"})
			return
		}
		s.logger.WithError(err).Error("Failed to archive report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to archive report"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":            rec.ID,
		"schemaVersion": rec.SchemaVersion,
		"createdAt":     rec.CreatedAt,
	})
}

func (s *Server) handleListReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	// Metadata only; payloads are served by the per-report endpoint.
	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, gin.H{
			"id":            rec.ID,
			"schemaVersion": rec.SchemaVersion,
			"supersedes":    rec.Supersedes,
			"createdAt":     rec.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

func (s *Server) handleGetReport(c *gin.Context) {
	rec, ok := s.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            rec.ID,
		"schemaVersion": rec.SchemaVersion,
		"supersedes":    rec.Supersedes,
		"createdAt":     rec.CreatedAt,
		"report":        json.RawMessage(rec.Payload),
	})
}

func (s *Server) handleRenderReport(c *gin.Context) {
	rec, ok := s.loadReport(c)
	if !ok {
		return
	}
	instance, err := s.codec.Decode(rec.Payload)
	if err != nil {
		s.logger.WithError(err).WithField("report_id", rec.ID).Error("Failed to decode archived report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode archived report"})
		return
	}
	text, err := render.Text(instance)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render report"})
		return
	}
	c.String(http.StatusOK, text)
}

// decodeBody reads and decodes a report envelope request body, translating
// codec failures into HTTP responses.
func (s *Server) decodeBody(c *gin.Context) (*domain.Instance, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxReportBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	instance, err := s.codec.Decode(body)
	if err != nil {
		status := http.StatusBadRequest
		var codecErr *domain.CodecError
		if errors.As(err, &codecErr) && codecErr.Code == domain.CodecErrUnsupportedVersion {
			status = http.StatusConflict
		}
		s.logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"error":      err.Error(),
		}).Warn("Rejected report envelope")
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, false
	}
	return instance, true
}

func (s *Server) loadReport(c *gin.Context) (*repository.ReportRecord, bool) {
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return nil, false
		}
		s.logger.WithError(err).Error("Failed to load report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
		return nil, false
	}
	return rec, true
}
