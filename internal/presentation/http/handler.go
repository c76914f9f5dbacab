package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sofa/sofa-basket-service/internal/application/activity"
	appbasket "github.com/sofa/sofa-basket-service/internal/application/basket"
	domain "github.com/sofa/sofa-basket-service/internal/domain/basket"
	"github.com/sofa/sofa-basket-service/internal/observability"
	"github.com/sofa/sofa-basket-service/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

type Handler struct {
	basketService *appbasket.Service
	recorder      *activity.Recorder
	log           observability.Logger
	tel           observability.Observability
}

func NewHandler(basketSvc *appbasket.Service, recorder *activity.Recorder,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		basketService: basketSvc,
		recorder:      recorder,
		log:           tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:           tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Handler
	h.muxHandle(mux, http.MethodPost, "/basket/items", h.handleAddItem)
	h.muxHandle(mux, http.MethodPost, "/basket/items/remove", h.handleRemoveItem)
	h.muxHandle(mux, http.MethodGet, "/basket", h.handleGetBasket)
	h.muxHandle(mux, http.MethodPost, "/basket/summary", h.handleSummary)
	h.muxHandle(mux, http.MethodPost, "/basket/coupons", h.handleApplyCoupon)
	h.muxHandle(mux, http.MethodPost, "/basket/coupons/remove", h.handleRemoveCoupon)
	h.muxHandle(mux, http.MethodPost, "/basket/coupons/clear", h.handleClearCoupons)
	h.muxHandle(mux, http.MethodPost, "/basket/clear", h.handleClear)
	h.muxHandle(mux, http.MethodGet, "/basket/activity", h.handleActivity)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.tel,
			)(
				h.withAccessLog(
					h.withHTTPMetrics(http.HandlerFunc(handler)),
				),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type itemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	VariantID string `json:"variant_id"`
	OptionID  string `json:"option_id"`
}

type itemResponse struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	OptionID  string `json:"option_id,omitempty"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
	Total     string `json:"total"`
}

func toItemResponse(item *domain.LineItem) itemResponse {
	resp := itemResponse{
		ProductID: item.Product.ID,
		Quantity:  item.Quantity,
		Price:     item.Price().StringFixed(2),
		Total:     item.Total().StringFixed(2),
	}
	switch v := item.Variant.(type) {
	case domain.VariantRef:
		resp.VariantID = string(v)
	case *domain.VariantRecord:
		resp.VariantID = v.VariantID
		resp.OptionID = v.OptionID
	}
	return resp
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	item, err := h.basketService.AddItem(r.Context(), appbasket.ItemInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		VariantID: req.VariantID,
		OptionID:  req.OptionID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	item, err := h.basketService.RemoveItem(r.Context(), appbasket.ItemInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		VariantID: req.VariantID,
		OptionID:  req.OptionID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

type basketResponse struct {
	Items   []itemResponse   `json:"items"`
	Coupons []*domain.Coupon `json:"coupons"`
	IsEmpty bool             `json:"is_empty"`
}

func (h *Handler) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.basketService.Items(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := basketResponse{
		Items:   make([]itemResponse, 0, len(snapshot.Items)),
		Coupons: snapshot.Coupons,
		IsEmpty: snapshot.IsEmpty,
	}
	for _, item := range snapshot.Items {
		resp.Items = append(resp.Items, toItemResponse(item))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	var opts domain.SummaryOptions
	if r.ContentLength != 0 {
		if err := decodeJSON(r.Context(), r, &opts); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	summary, err := h.basketService.Summary(r.Context(), &opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var coupon domain.Coupon
	if err := decodeJSON(r.Context(), r, &coupon); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.basketService.ApplyCoupon(r.Context(), coupon); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, coupon)
}

type removeCouponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	var req removeCouponRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.basketService.RemoveCoupon(r.Context(), req.Code); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearCoupons(w http.ResponseWriter, r *http.Request) {
	if err := h.basketService.ClearCoupons(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.basketService.Clear(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActivity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.recorder.Recent())
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("basket.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.tel.Metrics().Counter(observability.MHTTPRequests).Add(1, labels...)
		h.tel.Metrics().Histogram(observability.MHTTPRequestDuration).Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(ctx context.Context, r *http.Request, dst any) error {
	_ = ctx
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, appbasket.ErrProductNotFound),
		errors.Is(err, appbasket.ErrVariantNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrExceedsStock),
		errors.Is(err, domain.ErrInsufficientQuantity):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, appbasket.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
