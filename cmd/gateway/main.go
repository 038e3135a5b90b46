package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/shopflow/internal/gateway"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	shopServiceURL := os.Getenv("SHOP_SERVICE_URL")
	if shopServiceURL == "" {
		logger.Error("SHOP_SERVICE_URL is required")
		os.Exit(1)
	}

	secureCookie := true
	if v := os.Getenv("SESSION_COOKIE_SECURE"); v != "" {
		secureCookie, err = strconv.ParseBool(v)
		if err != nil {
			logger.Error("SESSION_COOKIE_SECURE must be a boolean", "error", err)
			os.Exit(1)
		}
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	shopProxy := gateway.NewServiceProxy(shopServiceURL, httpClient)
	var handlerOpts []gateway.HandlerOption
	if userHeader := os.Getenv("TRUSTED_USER_HEADER"); userHeader != "" {
		handlerOpts = append(handlerOpts, gateway.WithUserHeader(userHeader))
	} else {
		logger.Warn("TRUSTED_USER_HEADER not set, all requests are treated as guests")
	}

	handler := gateway.NewHandler(shopProxy, gateway.NewSessions(secureCookie), logger, handlerOpts...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("PATCH /cart/items/{id}", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("DELETE /cart/items/{id}", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /cart/merge", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(handler.HandleShop))

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
