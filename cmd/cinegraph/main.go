// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/CineGraphAI/CineGraphLocal/pkg/logging"
	"github.com/CineGraphAI/CineGraphLocal/services/chatbot"
	"github.com/CineGraphAI/CineGraphLocal/services/graph"
	"github.com/CineGraphAI/CineGraphLocal/services/pipeline"
)

func main() {
	logging.Setup(logging.Config{
		Level:   os.Getenv("LOG_LEVEL"),
		JSON:    true,
		Service: "chatbot",
	})

	cfg := chatbot.Config{
		Port:           getEnvInt("CHATBOT_PORT", 12310),
		DefaultBackend: getEnvString("LLM_BACKEND_TYPE", "deepseek"),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "cinegraph-otel-collector:4317"),
		GinMode:        os.Getenv("GIN_MODE"),
		Graph: graph.Config{
			URI:      getEnvString("NEO4J_URI", "bolt://localhost:7687"),
			Username: getEnvString("NEO4J_USERNAME", "neo4j"),
			Password: os.Getenv("NEO4J_PASSWORD"),
			Database: getEnvString("NEO4J_DATABASE", "neo4j"),
		},
		Pipeline: pipeline.ControllerConfig{
			MaxAttempts:     getEnvInt("PIPELINE_MAX_ATTEMPTS", 3),
			HistoryTurns:    getEnvInt("PIPELINE_HISTORY_TURNS", 3),
			QueryTimeout:    time.Duration(getEnvInt("PIPELINE_QUERY_TIMEOUT_SECONDS", 10)) * time.Second,
			LLMCallTimeout:  time.Duration(getEnvInt("PIPELINE_LLM_TIMEOUT_SECONDS", 30)) * time.Second,
			RetryDisallowed: getEnvBool("PIPELINE_RETRY_DISALLOWED", false),
		},
		SessionTurnCapacity: getEnvInt("SESSION_TURN_CAPACITY", 20),
	}

	svc, err := chatbot.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize the chatbot service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer env var, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Invalid boolean env var, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}
	return b
}
