// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/CineGraphAI/CineGraphLocal/services/pipeline"
	"github.com/gin-gonic/gin"
)

// HandleClearSession deletes a conversation and its history.
func HandleClearSession(registry *pipeline.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing session id"})
			return
		}
		if !registry.Clear(sessionID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		slog.Info("Cleared session", "conversation_id", sessionID)
		c.JSON(http.StatusOK, gin.H{"status": "cleared", "conversation_id": sessionID})
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
