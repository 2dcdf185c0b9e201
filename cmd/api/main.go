package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/valorops/expense-portal/internal/api/handlers"
	"github.com/valorops/expense-portal/internal/api/middleware"
	"github.com/valorops/expense-portal/internal/categorize"
	"github.com/valorops/expense-portal/internal/consolidation"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/events"
	eventskafka "github.com/valorops/expense-portal/internal/events/kafka"
	"github.com/valorops/expense-portal/internal/exportfiles"
	"github.com/valorops/expense-portal/internal/identity"
	infraBQ "github.com/valorops/expense-portal/internal/infra/bigquery"
	"github.com/valorops/expense-portal/internal/infra/memory"
	"github.com/valorops/expense-portal/internal/logger"
	"github.com/valorops/expense-portal/internal/preview"
	"github.com/valorops/expense-portal/internal/reporting"
	"github.com/valorops/expense-portal/internal/store"
)

func main() {
	_ = godotenv.Load()

	var (
		port    = flag.String("port", envOr("PORT", "8080"), "HTTP server port")
		bucket  = flag.String("bucket", os.Getenv("EXPORTS_BUCKET"), "GCS bucket for raw export files (or set EXPORTS_BUCKET)")
		backend = flag.String("backend", envOr("STORE_BACKEND", "bigquery"), "Store backend: bigquery or memory")
		brokers = flag.String("kafka-brokers", os.Getenv("KAFKA_BROKERS"), "Comma-separated Kafka brokers, empty disables events")
		topic   = flag.String("kafka-topic", envOr("KAFKA_TOPIC", "expense-ledger-events"), "Kafka topic for ledger events")
	)
	flag.Parse()

	log := logger.New("api")

	if *bucket == "" {
		log.Warn().Msg("No export bucket configured - export file uploads will be disabled")
	}

	ctx := context.Background()

	var (
		staging    store.StagingStore
		ledger     store.LedgerStore
		aliasStore store.AliasStore
	)
	switch *backend {
	case "memory":
		staging = memory.NewStagingStore()
		ledger = memory.NewLedgerStore()
		aliasStore = memory.NewAliasStore()
		log.Warn().Msg("Using in-memory stores, data will not survive a restart")
	default:
		client, err := infraBQ.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer client.Close()

		staging = infraBQ.NewStagingRepositoryWithClient(client)
		ledger = infraBQ.NewLedgerRepositoryWithClient(client)
		aliasStore = infraBQ.NewAliasRepositoryWithClient(client)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if *brokers != "" {
		kp := eventskafka.NewPublisher(strings.Split(*brokers, ","), *topic)
		defer kp.Close()
		publisher = kp
		log.Info().Str("topic", *topic).Msg("Publishing ledger events to Kafka")
	}

	resolver := identity.NewResolver(aliasStore)
	engine := consolidation.New(staging, ledger, resolver, publisher, log)
	previewSvc := preview.NewService(staging, resolver)
	reports := reporting.NewService(ledger)

	sourcesHandler := handlers.NewSourcesHandler(engine, previewSvc, staging, log)
	expensesHandler := handlers.NewExpensesHandler(ledger, reports, log)
	aliasesHandler := handlers.NewAliasesHandler(aliasStore, resolver, log)
	categorizeHandler := handlers.NewCategorizeHandler(categorize.NewGeminiSuggester(), log)
	exportsHandler := handlers.NewExportsHandler(exportfiles.NewStore(*bucket), *bucket, log)

	mux := http.NewServeMux()

	// Consolidated ledger endpoints
	mux.HandleFunc("/api/expenses", methodOnly(http.MethodGet, expensesHandler.List))
	mux.HandleFunc("/api/expenses/summary", methodOnly(http.MethodGet, expensesHandler.Summary))
	mux.HandleFunc("/api/expenses/by-employee", methodOnly(http.MethodGet, expensesHandler.ByEmployee))
	mux.HandleFunc("/api/expenses/monthly", methodOnly(http.MethodGet, expensesHandler.Monthly))
	mux.HandleFunc("/api/expenses/years", methodOnly(http.MethodGet, expensesHandler.Years))
	mux.HandleFunc("/api/expenses/names", methodOnly(http.MethodGet, expensesHandler.Names))
	mux.HandleFunc("/api/expenses/categories", methodOnly(http.MethodGet, expensesHandler.Categories))
	mux.HandleFunc("/api/expenses/vendors", methodOnly(http.MethodGet, expensesHandler.Vendors))

	// Alias admin endpoints
	mux.HandleFunc("/api/aliases", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			aliasesHandler.List(w, r)
		case http.MethodPut:
			aliasesHandler.Put(w, r)
		case http.MethodDelete:
			aliasesHandler.Delete(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// AI categorization
	mux.HandleFunc("/api/categorize", methodOnly(http.MethodPost, categorizeHandler.Suggest))

	// Export file uploads
	mux.HandleFunc("/api/exports/upload-url", methodOnly(http.MethodPost, exportsHandler.CreateUploadURL))
	mux.HandleFunc("/api/exports/upload/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		exportID := strings.TrimPrefix(r.URL.Path, "/api/exports/upload/")
		if exportID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Export ID is required")
			return
		}
		exportsHandler.Upload(w, r, exportID)
	})

	// Per-source endpoints: /api/{source}/preview|confirm|records|batches|sync
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		routeSource(sourcesHandler, w, r)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(os.Getenv("API_TOKEN"))(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("backend", *backend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// routeSource dispatches /api/{source}/... paths. The source segment
// must parse as a known source; everything else under /api/ is a 404.
func routeSource(h *handlers.SourcesHandler, w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/api/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	source, err := domain.ParseSource(parts[0])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Unknown source")
		return
	}

	var id string
	if len(parts) == 3 {
		id = parts[2]
	}

	switch {
	case parts[1] == "preview" && id == "" && r.Method == http.MethodPost:
		h.Preview(w, r, source)
	case parts[1] == "confirm" && id == "" && r.Method == http.MethodPost:
		h.Confirm(w, r, source)
	case parts[1] == "sync" && id == "" && r.Method == http.MethodPost:
		h.Sync(w, r, source)
	case parts[1] == "records" && id == "" && r.Method == http.MethodGet:
		h.ListRecords(w, r, source)
	case parts[1] == "records" && id != "" && r.Method == http.MethodPatch:
		h.PatchRecord(w, r, source, id)
	case parts[1] == "records" && id != "" && r.Method == http.MethodDelete:
		h.DeleteRecord(w, r, source, id)
	case parts[1] == "batches" && id == "" && r.Method == http.MethodGet:
		h.ListBatches(w, r, source)
	case parts[1] == "batches" && id != "" && r.Method == http.MethodDelete:
		h.DeleteBatch(w, r, source, id)
	default:
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	}
}

func methodOnly(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next(w, r)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
