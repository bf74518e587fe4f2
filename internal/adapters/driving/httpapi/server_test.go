package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, ports Ports, opts ...Option) http.Handler {
	t.Helper()
	s, err := NewServer(ports, opts...)
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestNewServer_RequiresAudit(t *testing.T) {
	_, err := NewServer(Ports{})
	assert.ErrorIs(t, err, ErrMissingAuditService)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("client_id", "must not be empty"), http.StatusBadRequest},
		{fmt.Errorf("%w: a.exe", domain.ErrUnsupportedType), http.StatusUnsupportedMediaType},
		{fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrDuplicateInvestigation, http.StatusConflict},
		{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{domain.ErrLLMUnavailable, http.StatusServiceUnavailable},
		{domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestEvaluateClaim(t *testing.T) {
	audit := &mockAuditService{result: &domain.InvestigationResult{
		InvestigationID: "inv-1",
		Status:          domain.StageTerminal,
		Verdict: domain.Verdict{
			Decision:      domain.DecisionApproved,
			Justification: "all rules satisfied",
			RiskScore:     12,
		},
	}}
	h := newTestServer(t, Ports{Audit: audit})

	body := []byte(`{"client_id":"C-1","submission_date":"2024-06-01","claim_ref":"R-9","claim_text":"rear-ended at a light","category":"Motor","amount":1200}`)
	w := do(h, http.MethodPost, "/ask/evaluate-claim", body, "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "inv-1", resp.InvestigationID)
	assert.Equal(t, "APPROVED", resp.Verdict)
	assert.Equal(t, 12, resp.RiskScore)
	assert.Empty(t, resp.Error)

	assert.Equal(t, "C-1", audit.lastClaim.ClientID)
	assert.Equal(t, "Motor", audit.lastClaim.Category)
	assert.InDelta(t, 1200.0, audit.lastClaim.Amount, 0.001)
}

func TestEvaluateClaim_MissingField(t *testing.T) {
	h := newTestServer(t, Ports{Audit: &mockAuditService{}})

	w := do(h, http.MethodPost, "/ask/evaluate-claim", []byte(`{"client_id":"C-1"}`), "application/json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestEvaluateClaim_ValidationError(t *testing.T) {
	audit := &mockAuditService{err: domain.NewValidationError("submission_date", "must be YYYY-MM-DD")}
	h := newTestServer(t, Ports{Audit: audit})

	body := []byte(`{"client_id":"C-1","submission_date":"June","claim_ref":"R","claim_text":"x"}`)
	w := do(h, http.MethodPost, "/ask/evaluate-claim", body, "application/json")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "submission_date", resp.Field)
}

func TestEvaluateClaim_StageFailureKeepsVerdict(t *testing.T) {
	audit := &mockAuditService{
		result: &domain.InvestigationResult{
			InvestigationID: "inv-2",
			Status:          domain.StageTerminal,
			Verdict:         domain.Verdict{Decision: domain.DecisionDenied, Justification: "retrieval failed"},
		},
		err: fmt.Errorf("retrieve history: %w", domain.ErrStoreUnavailable),
	}
	h := newTestServer(t, Ports{Audit: audit})

	body := []byte(`{"client_id":"C-1","submission_date":"2024-06-01","claim_ref":"R","claim_text":"x"}`)
	w := do(h, http.MethodPost, "/ask/evaluate-claim", body, "application/json")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "inv-2", resp.InvestigationID)
	assert.Equal(t, "DENIED", resp.Verdict)
	assert.Contains(t, resp.Error, "knowledge store unavailable")
}

func TestUploadPolicy(t *testing.T) {
	up := &mockUpload{path: "policies/Motor/2024-06-01_0930/motor.txt"}
	h := newTestServer(t, Ports{Audit: &mockAuditService{}, Upload: up})

	body, ct := multipartBody(t, map[string]string{"category": "Motor"}, "motor.txt", "Section 1. Cover.")
	w := do(h, http.MethodPost, "/upload/policy", body, ct)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), up.path)
	assert.Equal(t, "Motor", up.category)
	assert.Equal(t, "motor.txt", up.filename)
	assert.Equal(t, "Section 1. Cover.", up.body)
}

func TestUploadPolicy_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		file   string
		up     *mockUpload
		want   int
	}{
		{"missing category", nil, "a.txt", &mockUpload{}, http.StatusBadRequest},
		{"missing file", map[string]string{"category": "Motor"}, "", &mockUpload{}, http.StatusBadRequest},
		{"unsupported type", map[string]string{"category": "Motor"}, "a.exe",
			&mockUpload{err: fmt.Errorf("%w: a.exe", domain.ErrUnsupportedType)}, http.StatusUnsupportedMediaType},
		{"already uploaded", map[string]string{"category": "Motor"}, "a.txt",
			&mockUpload{err: domain.NewValidationError("filename", "a.txt already uploaded")}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, Ports{Audit: &mockAuditService{}, Upload: tt.up})
			body, ct := multipartBody(t, tt.fields, tt.file, "data")
			w := do(h, http.MethodPost, "/upload/policy", body, ct)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestUploadClaim(t *testing.T) {
	up := &mockUpload{path: "claims/C-1/initial/form.txt"}
	h := newTestServer(t, Ports{Audit: &mockAuditService{}, Upload: up})

	body, ct := multipartBody(t, nil, "form.txt", "claim form")
	w := do(h, http.MethodPost, "/upload/claim/C-1/initial", body, ct)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "C-1", up.clientID)
	assert.Equal(t, "initial", up.subType)
	assert.Equal(t, "claim form", up.body)
}

func TestUpload_NotConfigured(t *testing.T) {
	h := newTestServer(t, Ports{Audit: &mockAuditService{}})

	body, ct := multipartBody(t, map[string]string{"category": "Motor"}, "a.txt", "x")
	w := do(h, http.MethodPost, "/upload/policy", body, ct)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAskPolicy(t *testing.T) {
	adv := &mockAdvisor{answer: &driving.PolicyAnswer{
		Answer:  "Theft is covered under Section 4.",
		Clauses: []domain.QueryHit{{Content: "Section 4. Theft.", Score: 0.9}},
	}}
	h := newTestServer(t, Ports{Audit: &mockAuditService{}, Advisor: adv})

	w := do(h, http.MethodPost, "/ask/policy", []byte(`{"question":"Is theft covered?","category":"Motor"}`), "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	var resp driving.PolicyAnswer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Theft is covered under Section 4.", resp.Answer)
	require.Len(t, resp.Clauses, 1)
	assert.Equal(t, "Is theft covered?", adv.question)
	assert.Equal(t, "Motor", adv.category)
}

func TestAskPolicy_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newTestServer(t, Ports{Audit: &mockAuditService{}})
		w := do(h, http.MethodPost, "/ask/policy", []byte(`{"question":"q"}`), "application/json")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
	t.Run("missing question", func(t *testing.T) {
		h := newTestServer(t, Ports{Audit: &mockAuditService{}, Advisor: &mockAdvisor{}})
		w := do(h, http.MethodPost, "/ask/policy", []byte(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("llm unavailable", func(t *testing.T) {
		h := newTestServer(t, Ports{Audit: &mockAuditService{}, Advisor: &mockAdvisor{err: domain.ErrLLMUnavailable}})
		w := do(h, http.MethodPost, "/ask/policy", []byte(`{"question":"q"}`), "application/json")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestProgress(t *testing.T) {
	audit := &mockAuditService{progress: &domain.Progress{InvestigationID: "inv-3", Stage: domain.StageTerminal, Archived: true}}
	h := newTestServer(t, Ports{Audit: audit})

	w := do(h, http.MethodGet, "/investigations/inv-3/progress", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inv-3", audit.lastID)
	assert.Contains(t, w.Body.String(), `"archived":true`)
}

func TestAuditEntry(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		audit := &mockAuditService{entry: &domain.AuditEntry{InvestigationID: "inv-4", ClientID: "C-1"}}
		h := newTestServer(t, Ports{Audit: audit})
		w := do(h, http.MethodGet, "/audit/inv-4", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "inv-4", audit.lastID)
	})
	t.Run("not found", func(t *testing.T) {
		audit := &mockAuditService{err: fmt.Errorf("audit entry inv-5: %w", domain.ErrNotFound)}
		h := newTestServer(t, Ports{Audit: audit})
		w := do(h, http.MethodGet, "/audit/inv-5", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAuditList(t *testing.T) {
	audit := &mockAuditService{}
	h := newTestServer(t, Ports{Audit: audit})

	w := do(h, http.MethodGet, "/audit?client_id=C-1&limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	assert.Equal(t, "C-1", audit.lastClient)
	assert.Equal(t, 5, audit.lastLimit)

	w = do(h, http.MethodGet, "/audit?limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestionStatus(t *testing.T) {
	ing := &mockIngestion{status: domain.IngestionStatus{Archived: 3, Failed: 1}}
	h := newTestServer(t, Ports{Audit: &mockAuditService{}, Ingestion: ing})

	w := do(h, http.MethodGet, "/ingestion", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"archived":3`)
}

func TestHealthz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return domain.ErrStoreUnavailable }

	h := newTestServer(t, Ports{Audit: &mockAuditService{}}, WithHealthCheck("audit", ok))
	w := do(h, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	h = newTestServer(t, Ports{Audit: &mockAuditService{}}, WithHealthCheck("audit", ok), WithHealthCheck("store", down))
	w = do(h, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "knowledge store unavailable")
}

func TestMetricsRoute(t *testing.T) {
	h := newTestServer(t, Ports{Audit: &mockAuditService{}})
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/metrics", nil, "").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("claimaudit_up 1\n"))
	})
	h = newTestServer(t, Ports{Audit: &mockAuditService{}}, WithMetricsHandler(metrics))
	w := do(h, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "claimaudit_up")
}
