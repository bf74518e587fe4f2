package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// uploadPolicy handles POST /upload/policy (multipart: category, file).
func (s *Server) uploadPolicy(c *gin.Context) {
	if s.ports.Upload == nil {
		unavailable(c, "upload service")
		return
	}
	category := c.PostForm("category")
	if category == "" {
		abortWithError(c, domain.NewValidationError("category", "must not be empty"))
		return
	}
	s.storeUpload(c, func(name string, f io.Reader) (string, error) {
		return s.ports.Upload.UploadPolicy(c.Request.Context(), category, name, f)
	})
}

// uploadClaim handles POST /upload/claim/:client_id/:type (multipart: file).
func (s *Server) uploadClaim(c *gin.Context) {
	if s.ports.Upload == nil {
		unavailable(c, "upload service")
		return
	}
	clientID := c.Param("client_id")
	submissionType := c.Param("type")
	s.storeUpload(c, func(name string, f io.Reader) (string, error) {
		return s.ports.Upload.UploadClaim(c.Request.Context(), clientID, submissionType, name, f)
	})
}

func (s *Server) storeUpload(c *gin.Context, store func(name string, f io.Reader) (string, error)) {
	header, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, domain.NewValidationError("file", err.Error()))
		return
	}
	f, err := header.Open()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer f.Close() //nolint:errcheck

	path, err := store(header.Filename, f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, UploadResponse{Path: path})
}

// evaluateClaim handles POST /ask/evaluate-claim.
// A failed stage still returns the archived failure verdict.
func (s *Server) evaluateClaim(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := s.ports.Audit.Evaluate(c.Request.Context(), req.claim())
	if result == nil {
		abortWithError(c, err)
		return
	}

	resp := EvaluateResponse{
		InvestigationID: result.InvestigationID,
		Status:          result.Status,
		Verdict:         string(result.Verdict.Decision),
		Justification:   result.Verdict.Justification,
		RiskScore:       result.Verdict.RiskScore,
	}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	c.JSON(status, resp)
}

// askPolicy handles POST /ask/policy.
func (s *Server) askPolicy(c *gin.Context) {
	if s.ports.Advisor == nil {
		unavailable(c, "policy advisor")
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	answer, err := s.ports.Advisor.Ask(c.Request.Context(), req.Question, req.Category)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// progress handles GET /investigations/:id/progress.
func (s *Server) progress(c *gin.Context) {
	p, err := s.ports.Audit.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// auditEntry handles GET /audit/:id.
func (s *Server) auditEntry(c *gin.Context) {
	entry, err := s.ports.Audit.AuditEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// auditList handles GET /audit?client_id=&limit=.
func (s *Server) auditList(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortWithError(c, domain.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := s.ports.Audit.History(c.Request.Context(), c.Query("client_id"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// ingestionStatus handles GET /ingestion.
func (s *Server) ingestionStatus(c *gin.Context) {
	if s.ports.Ingestion == nil {
		unavailable(c, "ingestion")
		return
	}
	c.JSON(http.StatusOK, s.ports.Ingestion.Status())
}

// healthz handles GET /healthz.
func (s *Server) healthz(c *gin.Context) {
	results := make(map[string]string, len(s.checks))
	healthy := true
	for _, nc := range s.checks {
		if err := nc.check(c.Request.Context()); err != nil {
			results[nc.name] = err.Error()
			healthy = false
			continue
		}
		results[nc.name] = "ok"
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}
