// Package server is the thin HTTP facade over the job orchestrator:
// submit archives, poll status, download the finished report. No
// extraction logic lives here.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/common"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/jobs"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/report"
)

// Server carries the handlers' dependencies.
type Server struct {
	orch *jobs.Orchestrator
	log  *slog.Logger
}

// New builds the facade. A nil logger falls back to slog.Default().
func New(orch *jobs.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orch: orch, log: logger}
}

// Router assembles the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	router.POST("/upload", s.handleUpload)
	router.GET("/status/:job_id", s.handleStatus)
	router.GET("/download/:job_id", s.handleDownload)
	router.POST("/cancel/:job_id", s.handleCancel)
	router.GET("/", s.handleRoot)

	return router
}

// corsMiddleware mirrors the permissive policy of the original
// deployment: the service sits behind an internal gateway.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("read multipart form: %v", err)})
		return
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "no files provided; upload one or more .zip archives under 'files'"})
		return
	}

	archives := make([][]byte, 0, len(uploads))
	names := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		if !strings.HasSuffix(strings.ToLower(upload.Filename), ".zip") {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("invalid file type: %s; only .zip files are accepted", upload.Filename)})
			return
		}
		f, err := upload.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("open %s: %v", upload.Filename, err)})
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("read %s: %v", upload.Filename, err)})
			return
		}
		archives = append(archives, content)
		names = append(names, upload.Filename)
	}

	job := s.orch.Submit(archives, names)
	s.log.Info("upload.accepted", "job_id", job.ID(), "archives", len(archives))
	c.JSON(http.StatusOK, gin.H{
		"message":         "Job successfully queued for async processing.",
		"job_id":          job.ID(),
		"status_endpoint": "/status/" + job.ID(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	snapshot, err := s.orch.Snapshot(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found."})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleDownload(c *gin.Context) {
	jobID := c.Param("job_id")
	path, err := s.orch.OutputPath(jobID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found."})
		return
	case errors.Is(err, common.ErrNotReady):
		snapshot, _ := s.orch.Snapshot(jobID)
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("Job is not complete. Current status: %s", snapshot.Status)})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	if _, err := os.Stat(path); err != nil {
		s.log.Error("download.report_missing", "job_id", jobID, "path", path, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"detail": "Output file not found on server."})
		return
	}

	if c.Query("format") == "xlsx" {
		table, err := report.ReadCSV(path)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		workbook, err := report.RenderXLSX(table)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		name := strings.TrimSuffix(filepath.Base(path), ".csv") + ".xlsx"
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}

func (s *Server) handleCancel(c *gin.Context) {
	jobID := c.Param("job_id")
	if err := s.orch.Cancel(jobID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cancellation requested.", "job_id": jobID})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Cheque Extraction API is running."})
}
