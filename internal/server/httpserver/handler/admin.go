package handler

import "net/http"

// handleDeleteTan handles DELETE /admin/v1/tans/{hash}.
// Deleting an absent record succeeds.
func (h *Handler) handleDeleteTan(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if err := h.tanSvc.DeleteByHash(r.Context(), hash); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
