// Package agentstub provides a local HTTP stand-in for the Bringo Chef
// agent. It mirrors the two endpoints the verifier probes, so deployments
// can be dry-run without a live service.
package agentstub

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ServiceName is the service identifier the real agent reports from /health.
const ServiceName = "bringo-chef-ai"

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type messagePart struct {
	Text string `json:"text"`
}

type newMessage struct {
	Role  string        `json:"role"`
	Parts []messagePart `json:"parts"`
}

type runRequest struct {
	AppName    string     `json:"app_name"`
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id"`
	NewMessage newMessage `json:"new_message"`
	Streaming  bool       `json:"streaming"`
}

// NewRouter creates a chi router mimicking the agent's HTTP surface.
func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:  "healthy",
			Service: ServiceName,
		})
	})

	r.Post("/run_sse", func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			_ = req.Body.Close()
		}()

		var run runRequest
		if err := json.NewDecoder(req.Body).Decode(&run); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid JSON payload", err.Error())
			return
		}
		if run.AppName == "" || len(run.NewMessage.Parts) == 0 {
			writeErrorResponse(w, http.StatusBadRequest, "incomplete run request",
				"app_name and new_message.parts are required")
			return
		}

		// A single canned conversation turn in the agent's SSE framing.
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		event := map[string]any{
			"content": map[string]any{
				"role": "model",
				"parts": []map[string]string{
					{"text": "Hello! I'm the Bringo Chef stub. What would you like to cook?"},
				},
			},
			"author": run.AppName,
		}
		data, _ := json.Marshal(event)
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	})

	return r
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = fmt.Fprintf(w, `{"error":"%s","details":"%s"}`, message, details)
}
