package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm/logger"

	"github.com/grubwheel/grubwheel/pkg/config"
	"github.com/grubwheel/grubwheel/pkg/db"
	"github.com/grubwheel/grubwheel/pkg/overpass"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := db.Initialize(&db.Config{
		DatabasePath: cfg.Database.Path,
		LogLevel:     logger.Error,
	}); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store := db.GetDefaultService()

	client := overpass.NewClient(rand.New(rand.NewSource(time.Now().UnixNano())))
	client.Mirrors = cfg.Fetch.Mirrors
	client.Policy.BaseDelay = cfg.Fetch.BaseDelay
	client.Policy.DelayStep = cfg.Fetch.DelayStep
	client.OnAttempt = func(a overpass.Attempt) {
		entry := &db.FetchLog{
			Timestamp: time.Now(),
			Endpoint:  a.Endpoint,
			Tier:      a.Tier,
			Elements:  a.Elements,
		}
		if a.Err != nil {
			entry.Error = a.Err.Error()
		}
		if err := store.FetchLog.Create(entry); err != nil {
			log.Printf("Failed to record fetch attempt: %v", err)
		}
	}

	sessions := NewSessionManager(store, client, cfg.Wheel.SpinDuration)
	handler := NewHandler(sessions)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := db.Health(); err != nil {
				respondError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			w.Write([]byte("OK"))
		})

		r.Route("/v1/sessions", func(r chi.Router) {
			r.Post("/", handler.CreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetState)
				r.Get("/locations", handler.SearchLocations)
				r.Post("/location", handler.ChooseLocation)
				r.Post("/reload", handler.Reload)

				r.Route("/categories", func(r chi.Router) {
					r.Post("/toggle", handler.ToggleCategory)
					r.Post("/all", handler.IncludeAllCategories)
					r.Post("/none", handler.ExcludeAllCategories)
				})

				r.Post("/kinds", handler.SetKinds)
				r.Get("/wheel", handler.GetWheel)
				r.Post("/spin", handler.Spin)
			})
		})
	})

	// WebSocket endpoint for real-time session events
	router.Get("/ws/sessions/{id}", handler.SessionEvents)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
