package handler

import (
	"net/http"
	"strings"

	"github.com/cwa-verification/tanserver/internal/core/domain"
)

// handleTestResult handles POST /v1/testresult.
func (h *Handler) handleTestResult(w http.ResponseWriter, r *http.Request) {
	var req TestResultRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("id is required"))
		return
	}

	result, err := h.labSvc.Result(r.Context(), strings.ToLower(req.ID))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, TestResultResponse{
		TestResult: int(result),
		Label:      result.String(),
	})
}
