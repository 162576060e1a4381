package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"go-pedidos/internal/auth"
	"go-pedidos/internal/chat"
	"go-pedidos/internal/config"
	"go-pedidos/internal/console"
	"go-pedidos/internal/dashboard"
	"go-pedidos/internal/db"
	"go-pedidos/internal/gateway"
	myMiddleware "go-pedidos/internal/middleware"
	"go-pedidos/internal/orders"
	"go-pedidos/internal/storage"
	"go-pedidos/internal/whatsapp"
)

func main() {
	// 1. Config & Flags
	cfg := config.Load()
	addr := flag.String("addr", cfg.Addr, "http service address")
	flag.Parse()

	if cfg.DatabaseDSN == "" {
		log.Fatal("❌ DB_DSN is not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	database, err := db.NewDatabase(cfg.DatabaseDSN, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	defer database.Close()
	log.Println("✅ Connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database Schema Initialized")

	// 3. Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✅ Connected to Redis")

	// 4. Privileged functions
	var sender whatsapp.Sender = whatsapp.Disabled{}
	if cfg.TwilioEnabled() {
		tw, err := whatsapp.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
		if err != nil {
			log.Fatalf("❌ Twilio setup failed: %v", err)
		}
		sender = tw
		log.Println("✅ WhatsApp sending via Twilio")
	} else {
		log.Println("⚠️  Twilio not configured - outgoing messages are disabled")
	}
	functions := gateway.NewFunctions()
	chat.RegisterFunctions(functions, sender)

	gw := gateway.NewPostgres(database.Conn, redisClient, functions)

	// 5. Realtime relay: Postgres NOTIFY -> Redis pub/sub
	relay := gateway.NewRelay(cfg.DatabaseDSN, redisClient, gw, db.ChatRowsChannel, chat.TableMessages, "conversation_id")
	go func() {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("❌ relay stopped: %v", err)
		}
	}()

	// 6. Object storage
	var uploader storage.Uploader = storage.Disabled{}
	if cfg.StorageEnabled() {
		s3, err := storage.NewS3(ctx, cfg)
		if err != nil {
			log.Fatalf("❌ S3 setup failed: %v", err)
		}
		uploader = s3
	} else {
		log.Println("⚠️  S3 not configured - order export is disabled")
	}

	// 7. Features
	chatRepo := chat.NewRepository(gw)
	chatHandler := chat.NewHandler(chatRepo)

	orderRepo := orders.NewRepository(gw)
	orderHandler := orders.NewHandler(orders.NewService(orderRepo, uploader, nil))
	dashHandler := dashboard.NewHandler(dashboard.NewViewModel(orderRepo, nil))

	hub := console.NewHub(cfg.ReconcileInterval)
	go hub.Run(ctx)
	consoleHandler := console.NewHandler(hub, console.Deps{
		Chat:      chatRepo,
		Actions:   chatRepo,
		Dashboard: orderRepo,
	}, cfg.AllowedOrigins)

	authMiddleware := myMiddleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience))

	// 8. Define Routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Conn.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/ws", consoleHandler.ServeWs)

		r.Route("/api", func(api chi.Router) {
			api.Use(middleware.Timeout(60 * time.Second))

			api.Get("/me", auth.Me)

			api.Get("/orders", orderHandler.List)
			api.Put("/orders/{id}", orderHandler.Update)
			api.Delete("/orders/{id}", orderHandler.Delete)
			api.Post("/orders/export", orderHandler.Export)

			api.Get("/dashboard", dashHandler.Get)

			api.Get("/conversations", chatHandler.ListConversations)
			api.Get("/conversations/{key}/turns", chatHandler.GetTurns)
		})
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Server starting on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("👋 Server stopped")
}
