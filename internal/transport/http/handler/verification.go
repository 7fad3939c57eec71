package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-shop-api/internal/application/verification"
	"github.com/go-shop-api/internal/domain"
	"github.com/go-shop-api/internal/pkg/validate"
)

type IssueCodeRequest struct {
	Subject     string `json:"subject" validate:"required"`
	Purpose     string `json:"purpose" validate:"required,oneof=REGISTER RESET_PASSWORD"`
	Destination string `json:"destination" validate:"required"`
}

type VerifyCodeRequest struct {
	Subject string `json:"subject" validate:"required"`
	Code    string `json:"code" validate:"required,len=6,numeric"`
	Purpose string `json:"purpose" validate:"required,oneof=REGISTER RESET_PASSWORD"`
}

type CleanupRequest struct {
	Retention string `json:"retention"` // Go duration string, e.g. "168h"; empty uses the default
}

// IssuedEnvelope acknowledges issuance. The code itself is never returned to
// the client; it only travels out-of-band through the notifier.
type IssuedEnvelope struct {
	Message   string `json:"message"`
	ExpiresAt int64  `json:"expires_at"`
}

type CleanupEnvelope struct {
	Deleted int `json:"deleted"`
}

// VerificationHandler exposes verification code issuance, redemption and
// the admin cleanup operation.
type VerificationHandler struct {
	svc              verification.Service
	defaultRetention time.Duration
}

func NewVerificationHandler(svc verification.Service, defaultRetention time.Duration) *VerificationHandler {
	return &VerificationHandler{svc: svc, defaultRetention: defaultRetention}
}

func (h *VerificationHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req IssueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	issued, err := h.svc.Issue(r.Context(), req.Subject, domain.Purpose(req.Purpose), req.Destination)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IssuedEnvelope{
		Message:   "verification code sent",
		ExpiresAt: issued.ExpiresAt.Unix(),
	})
}

func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, err := h.svc.Verify(r.Context(), req.Subject, req.Code, domain.Purpose(req.Purpose)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code verified"})
}

// Cleanup deletes expired and stale consumed codes. Admin-only.
func (h *VerificationHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	retention := h.defaultRetention
	if req.Retention != "" {
		d, err := time.ParseDuration(req.Retention)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid retention duration")
			return
		}
		retention = d
	}
	deleted, err := h.svc.Cleanup(r.Context(), retention)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CleanupEnvelope{Deleted: deleted})
}
