package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/boudydegeer/product-analysis-sub000/internal/service"
)

// Header names the runner sets on callback requests.
const (
	HeaderSignature  = "X-Analysis-Signature"
	HeaderWorkItemID = "X-Work-Item-Id"
)

// WebhookHandlers provides the HTTP handler for runner callbacks.
type WebhookHandlers struct {
	Svc *service.WebhookService
}

// Receive handles a callback delivery from the runner. The body is read raw
// so signature verification covers the exact bytes on the wire. Duplicate
// deliveries for an already settled item get a 200 without a second write.
func (h *WebhookHandlers) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, ErrorParams{
				Code:    http.StatusRequestEntityTooLarge,
				ErrCode: "payload_too_large",
				Err:     err,
			})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "unreadable_body", Err: err})
		return
	}

	result, err := h.Svc.Receive(r.Context(), service.ReceiveParams{
		RawBody:    body,
		Signature:  r.Header.Get(HeaderSignature),
		WorkItemID: r.Header.Get(HeaderWorkItemID),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    result.Status,
		"duplicate": result.Duplicate,
	})
}
