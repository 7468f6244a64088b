package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/pharmintel/pharmawatch/internal/config"
	"github.com/pharmintel/pharmawatch/internal/models"
	"github.com/pharmintel/pharmawatch/internal/monitoring"
	"github.com/pharmintel/pharmawatch/internal/notifications"
	"github.com/pharmintel/pharmawatch/internal/scheduler"
	"github.com/pharmintel/pharmawatch/internal/sources"
	"github.com/pharmintel/pharmawatch/internal/storage"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting PharmaWatch monitor")

	mongoClient, err := connectMongo(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logrus.Errorf("Failed to disconnect MongoDB client: %v", err)
		}
	}()
	db := mongoClient.Database(cfg.MongoDatabase)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	notificationStore, err := notifications.NewMongoStore(initCtx, db, cfg.NotificationsCollection)
	if err != nil {
		logrus.Fatalf("Failed to initialize notification store: %v", err)
	}

	snapshotStore, err := sources.NewMongoSnapshotStore(initCtx, db, cfg.SnapshotsCollection)
	if err != nil {
		logrus.Fatalf("Failed to initialize snapshot store: %v", err)
	}

	var liveSource sources.SnapshotSource
	if cfg.AgentAPIBaseURL != "" {
		liveSource = sources.NewAgentAPISource(cfg.AgentAPIBaseURL, cfg.AgentAPITimeout)
		logrus.Infof("Live agent snapshot source enabled: %s", cfg.AgentAPIBaseURL)
	}

	var documentStore *sources.BlobDocumentStore
	var documentSource sources.DocumentSource
	if cfg.StorageAccount != "" {
		blobStorage, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize document storage: %v", err)
		}
		documentStore = sources.NewBlobDocumentStore(blobStorage)
		documentSource = documentStore
	} else {
		logrus.Info("No document storage configured, document observations disabled")
	}

	monitoringService := monitoring.NewService(cfg, snapshotStore, liveSource, documentSource, notificationStore)

	schedulerService := scheduler.NewService(cfg, monitoringService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(monitoringService)).Methods("GET")
	router.HandleFunc("/sweep", sweepHandler(monitoringService)).Methods("POST")
	router.HandleFunc("/sessions/{sessionID}/prompts/{promptID}/recheck", recheckHandler(monitoringService)).Methods("POST")
	router.HandleFunc("/sessions/{sessionID}/prompts/{promptID}/snapshots", snapshotIngestHandler(snapshotStore)).Methods("POST")
	router.HandleFunc("/sessions/{sessionID}/prompts/{promptID}/notification", notificationGetHandler(notificationStore)).Methods("GET")
	router.HandleFunc("/sessions/{sessionID}/prompts/{promptID}/notification/enabled", notificationToggleHandler(notificationStore)).Methods("PUT")
	router.HandleFunc("/sessions/{sessionID}/documents", documentUploadHandler(documentStore)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func connectMongo(cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	return client, nil
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(monitoringService.GetMetrics()))
	}
}

func sweepHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		changed, err := monitoringService.RunSweep(r.Context())
		if err != nil {
			if errors.Is(err, monitoring.ErrSweepInProgress) {
				writeError(w, http.StatusConflict, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if changed == nil {
			changed = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"changed_prompt_ids": changed})
	}
}

func recheckHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	type recheckRequest struct {
		Payloads map[string]interface{} `json:"payloads"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		var request recheckRequest
		body, err := io.ReadAll(r.Body)
		if err == nil && len(body) > 0 {
			if err := json.Unmarshal(body, &request); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
				return
			}
		}

		outcome, err := monitoringService.Recheck(r.Context(), vars["sessionID"], vars["promptID"], request.Payloads)
		if err != nil {
			if errors.Is(err, monitoring.ErrBaselineNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	}
}

func snapshotIngestHandler(recorder sources.SnapshotRecorder) http.HandlerFunc {
	type snapshotRequest struct {
		Payloads map[string]interface{} `json:"payloads"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		var request snapshotRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		snapshot := &models.AgentSnapshot{
			SessionID: vars["sessionID"],
			PromptID:  vars["promptID"],
			Payloads:  request.Payloads,
		}
		if err := recorder.RecordSnapshot(r.Context(), snapshot); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "snapshot recorded"})
	}
}

func notificationGetHandler(store notifications.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		notification, err := store.Get(r.Context(), vars["sessionID"], vars["promptID"])
		if err != nil {
			if errors.Is(err, notifications.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, notification)
	}
}

func notificationToggleHandler(store notifications.Store) http.HandlerFunc {
	type toggleRequest struct {
		Enabled bool `json:"enabled"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		var request toggleRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		notification, err := store.SetEnabled(r.Context(), vars["sessionID"], vars["promptID"], request.Enabled)
		if err != nil {
			if errors.Is(err, notifications.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, notification)
	}
}

func documentUploadHandler(documentStore *sources.BlobDocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if documentStore == nil {
			writeError(w, http.StatusServiceUnavailable, fmt.Errorf("document storage not configured"))
			return
		}
		vars := mux.Vars(r)

		text, err := io.ReadAll(r.Body)
		if err != nil || len(text) == 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("empty document body"))
			return
		}

		name, err := documentStore.UploadDocument(vars["sessionID"], string(text))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"document": name})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
