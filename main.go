package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/sofa/sofa-basket-service/internal/application/activity"
	appbasket "github.com/sofa/sofa-basket-service/internal/application/basket"
	domain "github.com/sofa/sofa-basket-service/internal/domain/basket"
	domevent "github.com/sofa/sofa-basket-service/internal/domain/event"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/config"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/eventbus"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/id"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/localdisk"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/memory"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/observability/oteltrace"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/observability/prometrics"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/observability/telemetry"
	"github.com/sofa/sofa-basket-service/internal/infrastructure/observability/zaplogger"
	"github.com/sofa/sofa-basket-service/internal/observability"
	httppresentation "github.com/sofa/sofa-basket-service/internal/presentation/http"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "basket-service")
	env := getenvDefault("ENV", "dev")

	logger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", env),
	)

	registry := prometrics.New("", "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: registry.Counter(string(observability.MHTTPRequests),
			"Total number of HTTP requests.", "method", "route", "status"),
		observability.MBasketEvents: registry.Counter(string(observability.MBasketEvents),
			"Total number of basket events recorded.", "event"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		observability.MHTTPRequestDuration: registry.Histogram(string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.", prometheus.DefBuckets, "method", "route", "status"),
	}
	tel := telemetry.New(oteltrace.New(serviceName), logger, counters, histograms)

	systemLogger := logger.With(observability.F("component", "main"))

	cfg := config.NewStatic(shippingOptions(systemLogger))

	storage, err := buildStorage()
	if err != nil {
		systemLogger.Error("storage_init_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}

	ledger, err := domain.New(storage, cfg)
	if err != nil {
		systemLogger.Error("ledger_init_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}

	catalog := memory.NewCatalog()
	seedCatalog(catalog)

	bus := eventbus.NewBus(logger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	// The ledger fans out synchronously; the bus decouples slower consumers
	// from the mutation path.
	ledger.Subscribe(func(_ *domain.Ledger, e domevent.Event) {
		_ = bus.Publish(context.Background(), e)
	})

	recorder := activity.NewRecorder(100, id.NewUUIDGenerator(), tel)
	recorder.Register(bus)

	basketService := appbasket.NewService(ledger, catalog, tel)
	handler := httppresentation.NewHandler(basketService, recorder, tel)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    getenvDefault("ADDR", ":8080"),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				observability.F("error", err.Error()),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			observability.F("error", err.Error()),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

// buildStorage picks the file-backed store when BASKET_DATA_DIR is set and
// falls back to the in-memory one.
func buildStorage() (domain.Storage, error) {
	if dir := os.Getenv("BASKET_DATA_DIR"); dir != "" {
		return localdisk.New(dir)
	}
	return memory.NewStorage(), nil
}

// shippingOptions reads the shipping configuration from the environment.
// Unset or unparsable values leave the option unconfigured.
func shippingOptions(logger observability.Logger) map[string]decimal.Decimal {
	options := make(map[string]decimal.Decimal)
	for name, envKey := range map[string]string{
		domain.OptShippingCost:     "SHIPPING_COST",
		domain.OptShippingTax:      "SHIPPING_TAX",
		domain.OptFreeShippingFrom: "FREE_SHIPPING_FROM",
	} {
		raw := os.Getenv(envKey)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			logger.Warn("config_option_invalid",
				observability.F("option", name),
				observability.F("value", raw),
			)
			continue
		}
		options[name] = value
	}
	return options
}

// seedCatalog loads a small demo catalog so the service is usable out of
// the box; a real deployment would sync products from the shop backend.
func seedCatalog(catalog *memory.Catalog) {
	catalog.PutProduct(&domain.Product{
		ID:    "1001",
		Name:  "City Backpack",
		Price: decimal.NewFromInt(100),
		Tax:   19,
		Qty:   domain.Int64Ptr(25),
	})
	catalog.PutProduct(&domain.Product{
		ID:    "1002",
		Name:  "Travel Mug",
		Price: decimal.NewFromInt(30),
		Tax:   7,
		Qty:   domain.Int64Ptr(40),
	})
	catalog.PutProduct(&domain.Product{
		ID:    "1003",
		Name:  "Gift Card",
		Price: decimal.NewFromInt(25),
		Tax:   19,
		Qty:   nil, // no stock tracking
	})
	catalog.PutVariant("1001", &domain.VariantRecord{
		VariantID: "color",
		OptionID:  "black",
		Stock:     domain.Int64Ptr(10),
	})
	catalog.PutVariant("1001", &domain.VariantRecord{
		VariantID: "color",
		OptionID:  "olive",
		Stock:     domain.Int64Ptr(5),
	})
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
