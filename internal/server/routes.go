package server

import (
	"net/http"

	"github.com/marcogenualdo/reqlog/internal/capture"
	"github.com/marcogenualdo/reqlog/internal/handlers"
	"github.com/marcogenualdo/reqlog/internal/middleware"
)

// setupRoutes wires the single handler every path goes to.
func (s *Server) setupRoutes() http.Handler {
	loggerHandler := handlers.NewLoggerHandler(s.console, s.logger)

	return middleware.Recovery(s.logger)(
		capture.Boundary(
			middleware.Logging(s.logger)(loggerHandler),
		),
	)
}
