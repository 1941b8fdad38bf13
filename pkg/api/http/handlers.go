package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/mythgate/internal/application/workers"
	"github.com/aescanero/mythgate/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnalyzeRequest is the body of analysis requests
type AnalyzeRequest struct {
	Address string `json:"address"`
	Mode    string `json:"mode"`
}

// AnalyzeResponse is the body of synchronous analysis responses. Issues is
// null on failure.
type AnalyzeResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Issues  []domain.Issue `json:"issues"`
	Summary string         `json:"summary,omitempty"`
}

// JobSubmitResponse is returned when a job is accepted
type JobSubmitResponse struct {
	JobID       string           `json:"job_id"`
	Status      domain.JobStatus `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

func (r AnalyzeRequest) toDomain() domain.AnalysisRequest {
	return domain.AnalysisRequest{
		Address: r.Address,
		Mode:    domain.AnalysisMode(r.Mode),
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	healthy := true
	checks := gin.H{}

	if s.health != nil {
		pool := s.health.GetStatus()
		checks["workers"] = pool
		if !pool.Healthy {
			healthy = false
		}
	}

	if s.storage != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			checks["storage"] = err.Error()
			healthy = false
		} else {
			checks["storage"] = "ok"
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleAnalyze runs an analysis and waits for the report
func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, AnalyzeResponse{Message: "Invalid request body"})
		return
	}

	report, err := s.service.Analyze(c.Request.Context(), req.toDomain())
	if err != nil {
		code, message := errorStatus(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error("analysis failed",
				zap.String("address", req.Address),
				zap.Int("status", code),
				zap.Error(err))
		}
		c.JSON(code, AnalyzeResponse{Message: message})
		return
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		Success: true,
		Message: report.Message(),
		Issues:  report.Issues,
		Summary: report.Summary,
	})
}

// handleSubmitAnalysis queues an asynchronous analysis
func (s *Server) handleSubmitAnalysis(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, AnalyzeResponse{Message: "Asynchronous analysis is not enabled"})
		return
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, AnalyzeResponse{Message: "Invalid request body"})
		return
	}

	job, err := s.jobs.Submit(c.Request.Context(), req.toDomain())
	if err != nil {
		code, message := errorStatus(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error("failed to submit job", zap.Int("status", code), zap.Error(err))
		}
		c.JSON(code, AnalyzeResponse{Message: message})
		return
	}

	c.JSON(http.StatusAccepted, JobSubmitResponse{
		JobID:       job.ID,
		Status:      job.Status,
		SubmittedAt: job.SubmittedAt,
	})
}

// handleGetAnalysis returns the state of a job
func (s *Server) handleGetAnalysis(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, AnalyzeResponse{Message: "Asynchronous analysis is not enabled"})
		return
	}

	job, err := s.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, AnalyzeResponse{Message: "Job not found"})
			return
		}
		s.logger.Error("failed to get job", zap.String("job_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, AnalyzeResponse{Message: "Failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// errorStatus maps an error to a status code and client message
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAddressRequired):
		return http.StatusBadRequest, "Contract address is required"
	case errors.Is(err, domain.ErrInvalidAddress), errors.Is(err, domain.ErrInvalidMode):
		return http.StatusBadRequest, capitalize(err.Error())
	case errors.Is(err, domain.ErrSourceNotVerified), errors.Is(err, domain.ErrNoContractCode):
		return http.StatusNotFound, capitalize(err.Error())
	case errors.Is(err, domain.ErrNoPragma), errors.Is(err, domain.ErrImportNotFound):
		return http.StatusUnprocessableEntity, capitalize(err.Error())
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, workers.ErrPoolStopped):
		return http.StatusServiceUnavailable, capitalize(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Analysis timed out"
	case errors.Is(err, domain.ErrExplorer):
		return http.StatusBadGateway, capitalize(err.Error())
	case errors.Is(err, domain.ErrNoJSONOutput):
		return http.StatusInternalServerError, "No valid JSON output from Mythril"
	default:
		return http.StatusInternalServerError, capitalize(err.Error())
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
