package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/abdosalm555/visit-pass/internal/config"
	"github.com/abdosalm555/visit-pass/internal/database"
	"github.com/abdosalm555/visit-pass/internal/detector"
	"github.com/abdosalm555/visit-pass/internal/handler"
	"github.com/abdosalm555/visit-pass/internal/middleware"
	"github.com/abdosalm555/visit-pass/internal/queue"
	"github.com/abdosalm555/visit-pass/internal/repository"
	"github.com/abdosalm555/visit-pass/internal/router"
	"github.com/abdosalm555/visit-pass/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env directly
	cfg := config.Load()

	// The credential store is the single serialization point for all
	// lifecycle transitions.  MySQL in production; memory for local runs.
	var (
		store repository.VisitStore
		users *repository.UserRepo
	)
	switch cfg.StoreBackend {
	case "memory":
		store = repository.NewMemoryVisitStore()
		log.Printf("using in-memory visit store; login endpoints require mysql")
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		store = repository.NewMySQLVisitStore(db)
		users = repository.NewUserRepo(db)
	}

	// One signing strategy per deployment, never mixed within a store.
	signer, err := service.NewSigner(cfg.SigningMode, cfg.SigningSecret, cfg.SigningKeyPath)
	if err != nil {
		log.Fatalf("signer: %v", err)
	}

	auth := service.NewAuthenticator(store, signer)
	issuer := service.NewIssuer(store, signer)
	det := detector.NewHTTPDetector(cfg.DetectorURL)
	gate := service.NewIdentityGate(store, auth, det, cfg.IdentityThreshold)
	engine := service.NewConfirmationEngine(store, auth, cfg.RequireIdentity)

	e := echo.New()
	router.RegisterRoutes(e)
	if users != nil {
		router.RegisterAuth(e, handler.NewAuthHandler(cfg, users), cfg.JWTSecret)
	}
	visits := handler.NewVisitHandler(cfg, issuer, auth, gate, engine)
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), config.NewRedisClient())
	router.RegisterVisits(e, visits, cfg.JWTSecret, rl)

	// Entry audit trail: consume visit.confirmed into logs/visits.log.
	go func() {
		if err := queue.StartVisitAuditConsumer(); err != nil {
			log.Printf("visit-audit consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s, signing=%s, identity_gate=%t)",
		addr, cfg.Env, cfg.StoreBackend, signer.Mode(), cfg.RequireIdentity)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
