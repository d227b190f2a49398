// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/CineGraphAI/CineGraphLocal/services/chatbot/handlers"
	"github.com/CineGraphAI/CineGraphLocal/services/llm"
	"github.com/CineGraphAI/CineGraphLocal/services/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(router *gin.Engine, registry *pipeline.SessionRegistry,
	runner handlers.TurnRunner, backends map[string]llm.LLMClient, defaultBackend string) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/ask", handlers.HandleAsk(registry, runner, backends, defaultBackend))
		sessions := v1.Group("/sessions")
		{
			sessions.DELETE("/:sessionId", handlers.HandleClearSession(registry))
		}
	}
}
