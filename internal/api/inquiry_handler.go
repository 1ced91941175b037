package api

import (
	"net/http"

	"storefront-catalog-service/internal/inquiry"
)

func (h *HTTPHandler) SubmitInquiry(w http.ResponseWriter, r *http.Request) {
	if h.inquiries == nil {
		respondWithError(w, http.StatusServiceUnavailable, "inquiry delivery is not configured")
		return
	}
	var input inquiry.Inquiry
	if err := decodeJSON(r, &input); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	if err := h.inquiries.Submit(r.Context(), input); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Inquiry received successfully!"})
}
