package chi

import (
	chiv5 "github.com/go-chi/chi/v5"
)

// Routes mounts the API handlers on the given router.
func (s *Server) Routes(r chiv5.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chiv5.Router) {
		r.Post("/corpus", s.SubmitCorpus)
		r.Post("/ask", s.Ask)
	})
}
