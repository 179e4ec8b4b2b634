package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/kmiyachi/castmatch/internal/cast"
	"github.com/kmiyachi/castmatch/internal/config"
	"github.com/kmiyachi/castmatch/internal/database"
	"github.com/kmiyachi/castmatch/internal/matching"
	"github.com/kmiyachi/castmatch/internal/recruitment"
	mw "github.com/kmiyachi/castmatch/pkg/middleware"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	// Cast directory
	castRepo := cast.NewRepository(db)
	castService := cast.NewService(castRepo)
	castHandler := cast.NewHandler(castService)

	// Solo matching lifecycle
	matchingRepo := matching.NewRepository(db)
	matchingService := matching.NewService(matchingRepo, castRepo)
	matchingHandler := matching.NewHandler(matchingService)

	// Group recruitment orchestration (reuses the matching repo for the
	// shared record-level writes)
	recruitmentRepo := recruitment.NewRepository(db)
	recruitmentService := recruitment.NewService(recruitmentRepo, matchingRepo, castRepo, cfg.CapAtRequested)
	recruitmentHandler := recruitment.NewHandler(recruitmentService)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(mw.ActorMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/casts", castHandler.Routes())
		r.Mount("/matchings", matchingHandler.Routes())
		r.Mount("/recruitments", recruitmentHandler.Routes())
	})

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
