// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/CineGraphAI/CineGraphLocal/services/chatbot/observability"
	"github.com/CineGraphAI/CineGraphLocal/services/llm"
	"github.com/CineGraphAI/CineGraphLocal/services/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var askTracer = otel.Tracer("cinegraph.chatbot.handlers")

// TurnRunner is the pipeline surface the handler needs. Satisfied by
// *pipeline.Controller; tests substitute a fake.
type TurnRunner interface {
	RunTurn(ctx context.Context, sess *pipeline.Session, question string, client llm.LLMClient) pipeline.TurnResult
}

type AskRequest struct {
	// ConversationID threads follow-up questions through one session.
	// Omit it to start a new conversation; the response carries the
	// assigned ID.
	ConversationID string `json:"conversation_id"`
	Question       string `json:"question" binding:"required"`
	// Model selects the LLM backend for this request (deepseek,
	// gemini, ollama). Empty uses the server default.
	Model string `json:"model"`
}

type AskResponse struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
	Attempts       int    `json:"attempts_used"`
	Succeeded      bool   `json:"succeeded"`
}

// HandleAsk answers one natural-language question about the movie
// graph. Questions for the same conversation are answered in arrival
// order; distinct conversations run concurrently.
func HandleAsk(registry *pipeline.SessionRegistry, runner TurnRunner,
	backends map[string]llm.LLMClient, defaultBackend string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := askTracer.Start(c.Request.Context(), "HandleAsk")
		defer span.End()

		var req AskRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the ask request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		backendName := req.Model
		if backendName == "" {
			backendName = defaultBackend
		}
		client, ok := backends[backendName]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model: " + backendName})
			return
		}

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}
		sess := registry.Session(conversationID)

		if m := observability.DefaultMetrics; m != nil {
			m.TurnStarted()
			defer m.TurnEnded()
		}

		start := time.Now()
		result := runner.RunTurn(ctx, sess, req.Question, client)
		elapsed := time.Since(start)

		if m := observability.DefaultMetrics; m != nil {
			m.RecordTurn(backendName, result.Succeeded, result.AttemptsUsed, elapsed.Seconds())
			if result.Succeeded {
				m.RecordResultRows(result.RowCount)
			} else {
				m.RecordFailure(result.FailureReason.String())
			}
		}

		slog.Info("Turn finished",
			"conversation_id", conversationID,
			"backend", backendName,
			"succeeded", result.Succeeded,
			"attempts", result.AttemptsUsed,
			"duration", elapsed)

		c.JSON(http.StatusOK, AskResponse{
			ConversationID: conversationID,
			Answer:         result.Answer,
			Attempts:       result.AttemptsUsed,
			Succeeded:      result.Succeeded,
		})
	}
}
