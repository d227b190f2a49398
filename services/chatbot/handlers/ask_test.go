// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CineGraphAI/CineGraphLocal/services/llm"
	"github.com/CineGraphAI/CineGraphLocal/services/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct{ name string }

func (stubLLM) Complete(context.Context, string, llm.GenerationParams) (string, error) {
	return "", nil
}

// fakeRunner returns a canned TurnResult and records what it was asked.
type fakeRunner struct {
	result    pipeline.TurnResult
	questions []string
	sessions  []string
	clients   []llm.LLMClient
}

func (f *fakeRunner) RunTurn(_ context.Context, sess *pipeline.Session, question string, client llm.LLMClient) pipeline.TurnResult {
	f.questions = append(f.questions, question)
	f.sessions = append(f.sessions, sess.ID())
	f.clients = append(f.clients, client)
	return f.result
}

func setupAskRouter(runner TurnRunner, backends map[string]llm.LLMClient, defaultBackend string) (*gin.Engine, *pipeline.SessionRegistry) {
	gin.SetMode(gin.TestMode)
	registry := pipeline.NewSessionRegistry(20)
	router := gin.New()
	router.POST("/v1/ask", HandleAsk(registry, runner, backends, defaultBackend))
	return router, registry
}

func postAsk(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleAsk_Success(t *testing.T) {
	runner := &fakeRunner{result: pipeline.TurnResult{
		Answer:       "Keanu Reeves acted in The Matrix.",
		Succeeded:    true,
		AttemptsUsed: 1,
		RowCount:     1,
	}}
	backends := map[string]llm.LLMClient{"deepseek": stubLLM{}}
	router, _ := setupAskRouter(runner, backends, "deepseek")

	w := postAsk(t, router, AskRequest{
		ConversationID: "conv-1",
		Question:       "What did Keanu Reeves act in?",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "Keanu Reeves acted in The Matrix.", resp.Answer)
	assert.Equal(t, 1, resp.Attempts)
	assert.True(t, resp.Succeeded)

	require.Len(t, runner.questions, 1)
	assert.Equal(t, "What did Keanu Reeves act in?", runner.questions[0])
	assert.Equal(t, "conv-1", runner.sessions[0])
}

func TestHandleAsk_AssignsConversationID(t *testing.T) {
	runner := &fakeRunner{result: pipeline.TurnResult{Answer: "ok", Succeeded: true, AttemptsUsed: 1}}
	backends := map[string]llm.LLMClient{"deepseek": stubLLM{}}
	router, _ := setupAskRouter(runner, backends, "deepseek")

	w := postAsk(t, router, AskRequest{Question: "a question with no conversation id"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID, "a new conversation id must be assigned")
}

func TestHandleAsk_Validation(t *testing.T) {
	runner := &fakeRunner{}
	backends := map[string]llm.LLMClient{"deepseek": stubLLM{}}
	router, _ := setupAskRouter(runner, backends, "deepseek")

	t.Run("missing question", func(t *testing.T) {
		w := postAsk(t, router, map[string]string{"conversation_id": "conv-1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown model", func(t *testing.T) {
		w := postAsk(t, router, AskRequest{Question: "q", Model: "gpt-99"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.Empty(t, runner.questions, "invalid requests must not reach the pipeline")
}

func TestHandleAsk_ModelSelection(t *testing.T) {
	runner := &fakeRunner{result: pipeline.TurnResult{Answer: "ok", Succeeded: true, AttemptsUsed: 1}}
	deepseek := stubLLM{name: "deepseek"}
	gemini := stubLLM{name: "gemini"}
	backends := map[string]llm.LLMClient{"deepseek": deepseek, "gemini": gemini}
	router, _ := setupAskRouter(runner, backends, "deepseek")

	w := postAsk(t, router, AskRequest{Question: "q", Model: "gemini"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, runner.clients, 1)
	assert.Equal(t, gemini, runner.clients[0])
}

func TestHandleAsk_DegradedTurnStillOK(t *testing.T) {
	runner := &fakeRunner{result: pipeline.TurnResult{
		Answer:        "I am sorry, I was unable to answer that question.",
		Succeeded:     false,
		AttemptsUsed:  3,
		FailureReason: pipeline.FailureSyntax,
	}}
	backends := map[string]llm.LLMClient{"deepseek": stubLLM{}}
	router, _ := setupAskRouter(runner, backends, "deepseek")

	w := postAsk(t, router, AskRequest{ConversationID: "conv-1", Question: "unanswerable"})

	// A degraded answer is still a successful HTTP exchange.
	require.Equal(t, http.StatusOK, w.Code)
	var resp AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Succeeded)
	assert.Equal(t, 3, resp.Attempts)
}

func TestHandleClearSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := pipeline.NewSessionRegistry(20)
	router := gin.New()
	router.DELETE("/v1/sessions/:sessionId", HandleClearSession(registry))

	t.Run("clears an existing session", func(t *testing.T) {
		registry.Session("conv-9").History().Append(pipeline.ConversationTurn{Question: "q"})

		req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/conv-9", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, registry.Session("conv-9").History().Len())
	})

	t.Run("unknown session returns 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/never-seen", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
