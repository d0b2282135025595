package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/asset"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/auth"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/collab"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/config"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/export"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/metrics"
	mw "github.com/AntoninoBonanno/DragDropAnnotate/internal/middleware"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/surface"
	"github.com/AntoninoBonanno/DragDropAnnotate/internal/typeid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	opts, err := config.LoadOptions(cfg.OptionsFile)
	if err != nil {
		slog.Error("load options", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore(ctx, cfg)
	if err != nil {
		slog.Error("open asset store", "error", err, "store", cfg.AssetStore)
		os.Exit(1)
	}

	loader, err := asset.NewLoader(cfg.PublicURL, store)
	if err != nil {
		slog.Error("create image loader", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	authService := auth.NewService(cfg.JWTSecret, auth.DefaultTokenTTL)
	authHandler := auth.NewHandler(authService)

	surfaceService := surface.NewService(opts, loader, m)
	surfaceHandler := surface.NewHandler(surfaceService, authService)

	hub := collab.NewHub(loader, m)
	surfaceService.SetBroadcaster(hub)
	go hub.Run()

	assetHandler := asset.NewHandler(store)
	exportHandler := export.NewHandler(surfaceService, m)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Preflights need a matching route for the middleware to run.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Assets are public; annotations and base images reference them by URL.
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/assets/{file}", assetHandler.Serve).Methods("GET")

	// Creating a surface returns the token that guards it.
	r.HandleFunc("/api/surfaces", surfaceHandler.Create).Methods("POST", "OPTIONS")

	api := r.PathPrefix("/api/surfaces/{" + auth.SurfaceVar + "}").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("", surfaceHandler.Get).Methods("GET")
	api.HandleFunc("", surfaceHandler.Delete).Methods("DELETE")
	api.HandleFunc("/token", authHandler.Refresh).Methods("POST")
	api.HandleFunc("/annotations", surfaceHandler.ListAnnotations).Methods("GET")
	api.HandleFunc("/annotations", surfaceHandler.AddAnnotation).Methods("POST")
	api.HandleFunc("/annotations", surfaceHandler.RemoveAnnotations).Methods("DELETE")
	api.HandleFunc("/highlight", surfaceHandler.Highlight).Methods("POST")
	api.HandleFunc("/hide", surfaceHandler.Hide).Methods("POST")
	api.HandleFunc("/show", surfaceHandler.Show).Methods("POST")
	api.HandleFunc("/frame", surfaceHandler.Frame).Methods("GET")
	api.HandleFunc("/export.png", exportHandler.ExportPNG).Methods("GET")

	// WebSocket endpoint
	r.HandleFunc("/ws/surface/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, surfaceService, cfg)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		hub.Stop()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.AssetStore)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (asset.Store, error) {
	if cfg.AssetStore == config.StoreMinio {
		return asset.NewMinioStore(ctx, asset.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Secure:    cfg.MinioSSL,
		})
	}
	return asset.NewFileStore(cfg.AssetDir)
}

// originPatterns strips schemes, which websocket.AcceptOptions does not
// expect.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, surfaces *surface.Service, cfg *config.Config) {
	surfaceID := mux.Vars(r)["id"]

	// Browsers cannot set headers on websocket requests.
	if err := authSvc.Authorize(r.URL.Query().Get("token"), surfaceID); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sf, err := surfaces.Get(surfaceID)
	if err != nil {
		http.Error(w, "surface not found", http.StatusNotFound)
		return
	}

	displayName := r.URL.Query().Get("name")
	if displayName == "" {
		displayName = "guest-" + uuid.New().String()[:8]
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(cfg.Origins()),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := collab.NewClient(hub, conn, sf, typeid.NewClientID(), displayName)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
