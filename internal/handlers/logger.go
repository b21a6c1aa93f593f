package handlers

import (
	"log/slog"
	"net/http"

	"github.com/marcogenualdo/reqlog/internal/console"
	"github.com/marcogenualdo/reqlog/internal/middleware"
	"github.com/marcogenualdo/reqlog/internal/request"
)

// ResponseBody is sent for every GET.
const ResponseBody = "200 OK - Details printed to console"

// LoggerHandler prints each GET request to the console and acknowledges it.
// Other methods get 405.
type LoggerHandler struct {
	console *console.Printer
	logger  *slog.Logger
}

func NewLoggerHandler(printer *console.Printer, logger *slog.Logger) *LoggerHandler {
	return &LoggerHandler{
		console: printer,
		logger:  logger,
	}
}

func (h *LoggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID, _ := middleware.GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		h.logger.Warn("method not allowed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	in := request.FromHTTP(r)
	if err := h.console.Request(in); err != nil {
		h.logger.Error("failed to print request", "request_id", requestID, "error", err)
	}

	h.logger.Debug("request printed",
		"request_id", requestID,
		"path", in.Path,
		"params", in.Query.Len(),
		"headers", len(in.Headers),
	)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ResponseBody))
}
