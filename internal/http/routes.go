package httpx

import (
	"log/slog"
	"net/http"

	"github.com/boudydegeer/product-analysis-sub000/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	WorkItems *service.WorkItemService
	Webhook   *service.WebhookService

	// Configuration
	MaxBodyBytes int64        // Request body cap, 0 disables the limit
	Logger       *slog.Logger // Logger for request logging and panics (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	workItemHandlers := &WorkItemHandlers{Svc: services.WorkItems}
	webhookHandlers := &WebhookHandlers{Svc: services.Webhook}

	registerWorkItemRoutes(mux, workItemHandlers)
	mux.HandleFunc("POST /api/callbacks/analysis", webhookHandlers.Receive)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = MaxBodyBytes(services.MaxBodyBytes)(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerWorkItemRoutes(mux *http.ServeMux, h *WorkItemHandlers) {
	mux.HandleFunc("POST /api/work-items", h.Create)
	mux.HandleFunc("POST /api/work-items/{id}/trigger", h.Trigger)
	mux.HandleFunc("GET /api/work-items/{id}/status", h.GetStatus)
	mux.HandleFunc("GET /api/work-items/{id}/result", h.GetResult)
}
