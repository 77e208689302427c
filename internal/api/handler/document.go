package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smart-audit/backend/internal/api/middleware"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/service"
)

// allowedExtensions is the document intake allow-list.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

// DocumentHandler handles document upload and job status endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
	jobs      *repository.JobRepository
}

// NewDocumentHandler creates a new document handler.
// Parameters:
//   - documents: submission service.
//   - jobs: job repository for status queries.
// Returns:
//   - *DocumentHandler: initialized handler.
func NewDocumentHandler(documents *service.DocumentService, jobs *repository.JobRepository) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		jobs:      jobs,
	}
}

// Upload handles POST /api/v1/documents/upload.
// Accepts multipart documents plus optional context fields and queues each
// one for async processing. Job IDs are returned immediately so the frontend
// can poll for status.
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}

	// Validate every file type before touching any of them
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedExtensions[ext] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("File type %s not allowed for file %s", ext, file.Filename),
			})
			return
		}
	}

	ledgerName := c.PostForm("ledger_names")
	financialYear := c.PostForm("financial_year")

	log := middleware.GetLogger(c)
	results := make([]*service.SubmitResult, 0, len(files))

	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("Error reading file %s: %s", file.Filename, err.Error()),
			})
			return
		}

		result, err := h.documents.Submit(c.Request.Context(), file.Filename, src, file.Size, ledgerName, financialYear)
		src.Close()
		if err != nil {
			// Prior documents in the batch stand; this one aborts the request
			log.WithError(err).Errorf("Error processing file %s", file.Filename)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("Error processing file %s: %s", file.Filename, err.Error()),
			})
			return
		}

		results = append(results, result)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("Successfully uploaded %d files", len(results)),
		"jobs":    results,
	})
}

// GetJob handles GET /api/v1/documents/jobs/:id.
// The frontend polls this endpoint to check if processing is complete.
func (h *DocumentHandler) GetJob(c *gin.Context) {
	jobID := c.Param("id")

	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/documents/jobs.
// Returns jobs newest-first, optionally filtered by status.
func (h *DocumentHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	statusFilter := c.Query("status_filter")

	jobs, err := h.jobs.List(c.Request.Context(), statusFilter, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(jobs),
		"jobs":  jobs,
	})
}

// GetLedgers handles GET /api/v1/documents/ledgers.
func (h *DocumentHandler) GetLedgers(c *gin.Context) {
	// Static list until ledgers come from the accounting integration
	c.JSON(http.StatusOK, []string{
		"State Bank of India",
		"HDFC Bank",
		"ICICI Bank",
		"Petty Cash",
		"Sales Account",
		"Purchase Account",
	})
}

// GetFinancialYears handles GET /api/v1/documents/financial-years.
func (h *DocumentHandler) GetFinancialYears(c *gin.Context) {
	c.JSON(http.StatusOK, []string{"2022-23", "2023-24", "2024-25", "2025-26"})
}
