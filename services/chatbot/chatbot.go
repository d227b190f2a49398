// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chatbot provides the HTTP service that answers natural-
// language questions about the movie knowledge graph.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the NL-to-Cypher pipeline, LLM backends,
// the Neo4j graph store, and observability infrastructure.
//
// # Usage
//
//	cfg := chatbot.Config{Port: 12310}
//	svc, err := chatbot.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CineGraphAI/CineGraphLocal/services/chatbot/observability"
	"github.com/CineGraphAI/CineGraphLocal/services/chatbot/routes"
	"github.com/CineGraphAI/CineGraphLocal/services/graph"
	"github.com/CineGraphAI/CineGraphLocal/services/llm"
	"github.com/CineGraphAI/CineGraphLocal/services/pipeline"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Service defines the contract for the chatbot service.
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify routes after construction.
	Router() *gin.Engine
}

// Config holds chatbot configuration options. All fields have
// defaults applied by New(); only the graph store credentials are
// genuinely required for production use.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// DefaultBackend is the LLM backend used when a request does not
	// name one. Valid values: "deepseek", "gemini", "ollama".
	// Default: "deepseek"
	DefaultBackend string

	// Graph is the Neo4j connection configuration.
	Graph graph.Config

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "cinegraph-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// Pipeline bounds the self-correction loop and the per-query and
	// per-model-call deadlines.
	Pipeline pipeline.ControllerConfig

	// SessionTurnCapacity is how many turns each conversation retains.
	// Default: 20
	SessionTurnCapacity int
}

// service implements Service for production use. All fields are
// read-only after New() returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *graph.Neo4jStore
	backends      map[string]llm.LLMClient
	registry      *pipeline.SessionRegistry
	controller    *pipeline.Controller
	tracerCleanup func(context.Context)
}

// New creates a chatbot Service with the given configuration.
//
// New initializes all components in order: defaults, OpenTelemetry
// tracing, Prometheus metrics, the graph store connection, the LLM
// backends, the pipeline controller, and finally the HTTP routes.
// A backend whose credentials are missing is skipped with a warning;
// only the default backend is mandatory.
func New(cfg Config) (Service, error) {
	s := &service{
		config:   applyConfigDefaults(cfg),
		backends: make(map[string]llm.LLMClient),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the pipeline")
	}

	if err := s.initGraph(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize graph store: %w", err)
	}

	if err := s.initLLMBackends(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM backends: %w", err)
	}

	schema := pipeline.MovieGraphSchema()
	s.registry = pipeline.NewSessionRegistry(s.config.SessionTurnCapacity)
	s.controller = pipeline.NewController(schema, s.store, s.config.Pipeline)
	slog.Info("Pipeline initialized",
		"schema_version", schema.Version(),
		"max_attempts", s.config.Pipeline.MaxAttempts,
		"retry_disallowed", s.config.Pipeline.RetryDisallowed)

	s.initRouter()

	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting chatbot server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = "deepseek"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "cinegraph-otel-collector:4317"
	}
	cfg.EnableMetrics = true
	if cfg.SessionTurnCapacity == 0 {
		cfg.SessionTurnCapacity = 20
	}
	if cfg.Graph.URI == "" {
		cfg.Graph = graph.DefaultConfig()
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing with an
// OTLP exporter over insecure gRPC (appropriate for internal networks).
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("chatbot-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initGraph connects to the Neo4j store. Connection retries with
// backoff happen inside Connect.
func (s *service) initGraph() error {
	store, err := graph.NewNeo4jStore(s.config.Graph)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Connect(ctx); err != nil {
		return err
	}
	s.store = store
	slog.Info("Connected to graph store", "uri", s.config.Graph.URI, "database", s.config.Graph.Database)
	return nil
}

// initLLMBackends creates every backend whose credentials are present.
// The default backend must initialize; the others are optional.
func (s *service) initLLMBackends() error {
	constructors := map[string]func() (llm.LLMClient, error){
		"deepseek": func() (llm.LLMClient, error) { return llm.NewDeepseekClient() },
		"gemini":   func() (llm.LLMClient, error) { return llm.NewGeminiClient() },
		"ollama":   func() (llm.LLMClient, error) { return llm.NewOllamaClient() },
	}

	for name, build := range constructors {
		client, err := build()
		if err != nil {
			if name == s.config.DefaultBackend {
				return fmt.Errorf("default backend %s unavailable: %w", name, err)
			}
			slog.Warn("Skipping LLM backend", "backend", name, "error", err)
			continue
		}
		s.backends[name] = client
		slog.Info("Registered LLM backend", "backend", name)
	}

	if _, ok := s.backends[s.config.DefaultBackend]; !ok {
		return fmt.Errorf("default backend %s did not initialize", s.config.DefaultBackend)
	}
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("chatbot-service"))

	routes.SetupRoutes(s.router, s.registry, s.controller, s.backends, s.config.DefaultBackend)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Close(ctx); err != nil {
			slog.Warn("Graph store close error", "error", err)
		}
		cancel()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

var _ Service = (*service)(nil)
