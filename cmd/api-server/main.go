package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bookring/internal/auth"
	"bookring/internal/books"
	"bookring/internal/chat"
	"bookring/internal/feed"
	"bookring/internal/importer"
	"bookring/internal/listings"
	"bookring/internal/lookup"
	"bookring/internal/notify"
	"bookring/pkg/database"
	"bookring/pkg/utils"
)

func main() {
	utils.LoadEnv()

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	srvCfg := utils.LoadServerConfig()

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// Start the TCP event feed first (so you notice binding errors early)
	hub := feed.NewHub()
	router.GET("/ws/feed", feed.WSHandler(hub))
	tcpSrv := feed.NewServer(srvCfg.FeedAddr, hub)

	// UDP new-listing notifier
	registry := notify.NewRegistry()
	udpSrv := notify.NewServer(srvCfg.UDPAddr, registry, nil)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.GET("/debug", func(c *gin.Context) {
		stats := hub.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db":          cfg.Path,
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	// External metadata lookup
	lookupCfg := utils.LoadLookupConfig()
	lookupClient := lookup.NewClient(lookupCfg.BaseURL, lookupCfg.Delay)

	// Catalog (public)
	booksRepo := books.NewRepo(db)
	booksHandler := books.NewHandler(booksRepo)
	booksGroup := router.Group("/books")
	booksHandler.RegisterRoutes(booksGroup)

	// Listings
	listingsRepo := listings.NewRepo(db)
	listingsSvc := listings.NewService(db, booksRepo, listingsRepo)
	listingsHandler := listings.NewHandler(listingsRepo, listingsSvc, lookupClient, hub, udpSrv)
	listingsHandler.RegisterPublicRoutes(router.Group(""))
	listingsHandler.RegisterResolveRoute(booksGroup)

	// Protected routes
	protected := router.Group("")
	protected.Use(auth.AuthMiddleware(tokenSvc, authRepo))

	protected.GET("/users/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		profile, err := authRepo.GetProfile(c.Request.Context(), claims.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "profile failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
			"email":    claims.Email,
			"profile":  profile,
		})
	})

	listingsHandler.RegisterProtectedRoutes(protected)

	// CSV batch import
	importHandler := importer.NewHandler(lookupClient, listingsSvc)
	importHandler.RegisterRoutes(protected)

	// Conversations
	chatHub := chat.NewHub()
	chatRepo := chat.NewRepo(db)
	router.GET("/ws/chat", chat.WSHandler(chatHub, chatRepo, tokenSvc))
	protected.GET("/conversations/:peer/messages", chat.HistoryHandler(chatRepo))

	httpSrv := &http.Server{
		Addr:    srvCfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	go func() {
		if err := udpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", srvCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}
