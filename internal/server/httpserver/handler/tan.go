package handler

import (
	"net/http"

	"github.com/cwa-verification/tanserver/internal/core/domain"
)

// handleIssueTan handles POST /v1/tans.
func (h *Handler) handleIssueTan(w http.ResponseWriter, r *http.Request) {
	var req IssueTanRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	typ := domain.TanTypeTan
	if req.Type != "" {
		parsed, err := domain.ParseTanType(req.Type)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		typ = parsed
	}

	sot := defaultSourceOfTrust(typ)
	if req.SourceOfTrust != "" {
		parsed, err := domain.ParseSourceOfTrust(req.SourceOfTrust)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		sot = parsed
	}

	plaintext, err := h.tanSvc.Issue(r.Context(), typ, sot)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.writeJSON(w, r, http.StatusCreated, IssueTanResponse{
		Tan:  plaintext,
		Type: typ,
	})
}

// handleVerifyTan handles POST /v1/tans/verify.
func (h *Handler) handleVerifyTan(w http.ResponseWriter, r *http.Request) {
	var req TanRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Tan == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("tan is required"))
		return
	}
	if err := h.tanSvc.CheckSyntax(req.Tan); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	status, err := h.tanSvc.Verify(r.Context(), req.Tan)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, VerifyTanResponse{Status: status})
}

// handleRedeemTan handles POST /v1/tans/redeem.
// Every failed redemption gets the same reply so callers cannot probe
// which codes exist.
func (h *Handler) handleRedeemTan(w http.ResponseWriter, r *http.Request) {
	var req TanRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ok, err := h.tanSvc.Redeem(r.Context(), req.Tan)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, http.StatusNotFound, domain.ErrTanNotFound.Code, "tan cannot be redeemed", nil)
		return
	}

	h.writeJSON(w, r, http.StatusOK, RedeemTanResponse{Redeemed: true})
}

func defaultSourceOfTrust(typ domain.TanType) domain.SourceOfTrust {
	if typ == domain.TanTypeTeleTan {
		return domain.SourceTeleTan
	}
	return domain.SourceConnectedLab
}
