package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler, frontendURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{frontendURL},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Post("/session", apiHandler.NewSessionHandler)
		r.Post("/upload", apiHandler.UploadHandler)
		r.Post("/reset", apiHandler.ResetHandler)
		r.Post("/generate", apiHandler.GenerateHandler)

		r.Get("/images", apiHandler.ListImagesHandler)
		r.Delete("/images", apiHandler.DeleteImagesHandler)
		r.Post("/images/search", apiHandler.SearchImagesHandler)
	})

	return r
}
