package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	cfg := Config{
		APIURL:      ts.URL,
		AdminSecret: "test-admin-secret",
	}
	client := NewContinuumClient(cfg)
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func sampleArgs() []any {
	out := make([]any, 10)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func vectorListArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = sampleArgs()
	}
	return out
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "unknown_user",
			"message": "no profile enrolled for this user",
		})
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL})
	_, err := client.GetProfile(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no profile enrolled for this user")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL})
	_, err := client.GetStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_DoRequest_ConnectionRefused(t *testing.T) {
	client := NewContinuumClient(Config{APIURL: "http://127.0.0.1:1"})
	_, err := client.GetStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_DoRequest_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately
	_, err := client.GetStats(ctx)
	require.Error(t, err)
}

func TestClient_Authenticate_RequestBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/authenticate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		assert.Equal(t, "alice", m["userId"])

		_ = json.NewEncoder(w).Encode(map[string]any{"tier": "T1", "label": "PASS"})
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL})
	_, err := client.Authenticate(context.Background(), map[string]any{"userId": "alice"})
	require.NoError(t, err)
}

func TestClient_GetAssessments_QueryParams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/bob/assessments", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{"assessments": []any{}, "count": 0})
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL})
	_, err := client.GetAssessments(context.Background(), "bob", 25)
	require.NoError(t, err)
}

func TestClient_GetAssessments_ZeroLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("limit"), "limit=0 should not be sent")
		_ = json.NewEncoder(w).Encode(map[string]any{"assessments": []any{}, "count": 0})
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL})
	_, err := client.GetAssessments(context.Background(), "bob", 0)
	require.NoError(t, err)
}

func TestClient_FlagUser_AdminHeader(t *testing.T) {
	var gotSecret string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/admin/users/mallory/flag", r.URL.Path)
		gotSecret = r.Header.Get("X-Admin-Secret")
		_ = json.NewEncoder(w).Encode(map[string]any{"userId": "mallory", "flagged": true})
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL, AdminSecret: "hunter2"})
	_, err := client.FlagUser(context.Background(), "mallory")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", gotSecret)
}

func TestClient_NonAdminCalls_NoSecretHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Admin-Secret"))
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL, AdminSecret: "hunter2"})
	_, err := client.GetStats(context.Background())
	require.NoError(t, err)
}

func TestClient_GetProfile_EscapesUserID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/a%2Fb/profile", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer ts.Close()

	client := NewContinuumClient(Config{APIURL: ts.URL})
	_, err := client.GetProfile(context.Background(), "a/b")
	require.NoError(t, err)
}

// ============================================================
// Handler: authenticate_session
// ============================================================

func TestHandleAuthenticateSession_HappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authenticate", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		assert.Equal(t, "alice", m["userId"])
		assert.Len(t, m["sample"], 10)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"assessmentId": "asmt_123",
			"userId":       "alice",
			"tier":         "T1",
			"label":        "PASS",
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleAuthenticateSession(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"sample":  sampleArgs(),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "alice")
	assert.Contains(t, text, "T1")
	assert.Contains(t, text, "PASS")
	assert.Contains(t, text, "asmt_123")
}

func TestHandleAuthenticateSession_FusedDecision(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authenticate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"assessmentId": "asmt_block",
			"userId":       "eve",
			"tier":         "T3",
			"label":        "BLOCK",
			"score":        0.73,
			"factors": map[string]any{
				"graph_risk":      0.9,
				"drift_anomaly":   0.4,
				"similarity_risk": 0.7,
			},
			"flags": []string{"unusual_login_distance"},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleAuthenticateSession(context.Background(), makeRequest(map[string]any{
		"user_id": "eve",
		"sample":  sampleArgs(),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "T3")
	assert.Contains(t, text, "BLOCK")
	assert.Contains(t, text, "0.730")
	assert.Contains(t, text, "graph_risk: 0.900")
	assert.Contains(t, text, "unusual_login_distance")
}

func TestHandleAuthenticateSession_Bootstrap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authenticate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"assessmentId": "asmt_new",
			"userId":       "newcomer",
			"tier":         "T1",
			"label":        "SKIP",
			"enrolled":     true,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleAuthenticateSession(context.Background(), makeRequest(map[string]any{
		"user_id": "newcomer",
		"sample":  sampleArgs(),
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "bootstrapped")
}

func TestHandleAuthenticateSession_MissingUserID(t *testing.T) {
	h := NewHandlers(NewContinuumClient(Config{}))
	result, err := h.HandleAuthenticateSession(context.Background(), makeRequest(map[string]any{
		"sample": sampleArgs(),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "user_id is required")
}

func TestHandleAuthenticateSession_BadSample(t *testing.T) {
	h := NewHandlers(NewContinuumClient(Config{}))
	result, err := h.HandleAuthenticateSession(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"sample":  []any{"not", "numbers"},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "sample must be an array")
}

func TestHandleAuthenticateSession_PassesLocation(t *testing.T) {
	var gotLocation map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authenticate", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		gotLocation, _ = m["location"].(map[string]any)
		_ = json.NewEncoder(w).Encode(map[string]any{"tier": "T1", "label": "PASS"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	_, err := h.HandleAuthenticateSession(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"sample":  sampleArgs(),
		"location": map[string]any{
			"currentSession": map[string]any{"lat": 43.65, "lon": -79.38},
		},
	}))
	require.NoError(t, err)
	require.NotNil(t, gotLocation)
	assert.Contains(t, gotLocation, "currentSession")
}

func TestHandleAuthenticateSession_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authenticate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": "scorer_unavailable", "message": "verifier backend fault",
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleAuthenticateSession(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"sample":  sampleArgs(),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "verifier backend fault")
}

// ============================================================
// Handler: enroll_user
// ============================================================

func TestHandleEnrollUser_Created(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/enroll", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		assert.Equal(t, "alice", m["userId"])
		assert.Len(t, m["samples"], 5)
		assert.Len(t, m["history"], 15)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"userId": "alice", "created": true})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleEnrollUser(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"samples": vectorListArgs(5),
		"history": vectorListArgs(15),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Profile created for alice")
}

func TestHandleEnrollUser_AlreadyExisted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/enroll", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"userId": "alice", "created": false})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleEnrollUser(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"samples": vectorListArgs(5),
		"history": vectorListArgs(15),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already existed")
}

func TestHandleEnrollUser_MissingUserID(t *testing.T) {
	h := NewHandlers(NewContinuumClient(Config{}))
	result, err := h.HandleEnrollUser(context.Background(), makeRequest(map[string]any{
		"samples": vectorListArgs(5),
		"history": vectorListArgs(15),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "user_id is required")
}

func TestHandleEnrollUser_BadSamples(t *testing.T) {
	h := NewHandlers(NewContinuumClient(Config{}))
	result, err := h.HandleEnrollUser(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"samples": "not an array",
		"history": vectorListArgs(15),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "samples must be an array")
}

func TestHandleEnrollUser_InsufficientBatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/enroll", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": "insufficient_samples", "message": "enrollment requires at least 5 samples",
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleEnrollUser(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"samples": vectorListArgs(2),
		"history": vectorListArgs(15),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "at least 5 samples")
}

// ============================================================
// Handler: get_user_assessments
// ============================================================

func TestHandleGetUserAssessments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/alice/assessments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"userId": "alice",
			"assessments": []map[string]any{
				{"id": "a2", "tier": "T3", "label": "MANUAL_REVIEW", "score": 0.41, "evaluatedAt": "2026-09-01T10:00:00Z"},
				{"id": "a1", "tier": "T1", "label": "PASS", "evaluatedAt": "2026-09-01T09:59:30Z"},
			},
			"count": 2,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetUserAssessments(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "2 assessment(s) for alice")
	assert.Contains(t, text, "MANUAL_REVIEW")
	assert.Contains(t, text, "0.410")
	assert.Contains(t, text, "PASS")
	assert.Contains(t, text, "2026-09-01T10:00:00Z")
}

func TestHandleGetUserAssessments_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/ghost/assessments", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"userId": "ghost", "assessments": []any{}, "count": 0,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetUserAssessments(context.Background(), makeRequest(map[string]any{
		"user_id": "ghost",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No assessments recorded for ghost")
}

func TestHandleGetUserAssessments_CustomLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/alice/assessments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{"userId": "alice", "assessments": []any{}, "count": 0})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	_, err := h.HandleGetUserAssessments(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
		"limit":   float64(3), // JSON numbers come as float64
	}))
	require.NoError(t, err)
}

func TestHandleGetUserAssessments_MissingUserID(t *testing.T) {
	h := NewHandlers(NewContinuumClient(Config{}))
	result, err := h.HandleGetUserAssessments(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "user_id is required")
}

// ============================================================
// Handler: get_user_profile
// ============================================================

func TestHandleGetUserProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/alice/profile", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"userId":         "alice",
			"age":            34.0,
			"enrolled":       true,
			"idleStreak":     2.0,
			"historySamples": 15.0,
			"updatedAt":      "2026-09-01T10:00:00Z",
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetUserProfile(context.Background(), makeRequest(map[string]any{
		"user_id": "alice",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "alice")
	assert.Contains(t, text, "Age: 34")
	assert.Contains(t, text, "Enrolled: true")
	assert.Contains(t, text, "15 samples")
}

func TestHandleGetUserProfile_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/ghost/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": "unknown_user", "message": "no profile enrolled for this user",
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetUserProfile(context.Background(), makeRequest(map[string]any{
		"user_id": "ghost",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no profile enrolled")
}

func TestHandleGetUserProfile_MissingUserID(t *testing.T) {
	h := NewHandlers(NewContinuumClient(Config{}))
	result, err := h.HandleGetUserProfile(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "user_id is required")
}

// ============================================================
// Handler: get_service_stats
// ============================================================

func TestHandleGetServiceStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"enrolledProfiles": 42,
			"sessionGraph":     map[string]any{"users": 42, "infra": 17, "flagged": 1},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetServiceStats(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "enrolledProfiles")
	assert.Contains(t, text, "42")
	assert.Contains(t, text, "flagged")
}

func TestHandleGetServiceStats_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "unavailable", "message": "maintenance"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetServiceStats(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "maintenance")
}

// ============================================================
// Handler: flag_user
// ============================================================

func TestHandleFlagUser(t *testing.T) {
	var gotSecret string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users/mallory/flag", func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Admin-Secret")
		_ = json.NewEncoder(w).Encode(map[string]any{"userId": "mallory", "flagged": true})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleFlagUser(context.Background(), makeRequest(map[string]any{
		"user_id": "mallory",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "test-admin-secret", gotSecret)

	text := resultText(t, result)
	assert.Contains(t, text, "mallory")
	assert.Contains(t, text, "tainted")
}

func TestHandleFlagUser_Forbidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users/mallory/flag", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "forbidden", "message": "admin secret required"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleFlagUser(context.Background(), makeRequest(map[string]any{
		"user_id": "mallory",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "admin secret required")
}

func TestHandleFlagUser_MissingUserID(t *testing.T) {
	h := NewHandlers(NewContinuumClient(Config{}))
	result, err := h.HandleFlagUser(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "user_id is required")
}

// ============================================================
// Formatting & parsing unit tests
// ============================================================

func TestFormatDecision_MalformedJSON(t *testing.T) {
	_, err := formatDecision(json.RawMessage(`garbage`))
	assert.Error(t, err)
}

func TestFormatDecision_FactorOrder(t *testing.T) {
	raw := json.RawMessage(`{
		"userId":"u","tier":"T3","label":"BLOCK","score":0.7,
		"factors":{"similarity_risk":0.3,"graph_risk":0.9,"drift_anomaly":0.1}
	}`)
	text, err := formatDecision(raw)
	require.NoError(t, err)
	gi := strings.Index(text, "graph_risk")
	di := strings.Index(text, "drift_anomaly")
	si := strings.Index(text, "similarity_risk")
	assert.True(t, gi < di && di < si, "factors should print in fixed order")
}

func TestFormatAssessments_MalformedJSON(t *testing.T) {
	_, err := formatAssessments(json.RawMessage(`garbage`))
	assert.Error(t, err)
}

func TestFormatProfile_MalformedJSON(t *testing.T) {
	_, err := formatProfile(json.RawMessage(`garbage`))
	assert.Error(t, err)
}

func TestFormatJSON_ValidJSON(t *testing.T) {
	result := formatJSON(json.RawMessage(`{"a":1,"b":"two"}`))
	assert.Contains(t, result, "\"a\": 1")
	assert.Contains(t, result, "\"b\": \"two\"")
}

func TestFormatJSON_InvalidJSON(t *testing.T) {
	result := formatJSON(json.RawMessage(`not json`))
	assert.Equal(t, "not json", result)
}

func TestToFloats(t *testing.T) {
	out, ok := toFloats([]any{1.0, 2.5, 3.0})
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2.5, 3}, out)

	_, ok = toFloats([]any{1.0, "two"})
	assert.False(t, ok)

	_, ok = toFloats("not an array")
	assert.False(t, ok)
}

func TestToVectorList(t *testing.T) {
	out, ok := toVectorList([]any{[]any{1.0, 2.0}, []any{3.0, 4.0}})
	require.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, []float64{3, 4}, out[1])

	_, ok = toVectorList([]any{[]any{1.0}, "nope"})
	assert.False(t, ok)
}

func TestGetString_Fallback(t *testing.T) {
	m := map[string]any{"foo": "bar"}
	assert.Equal(t, "bar", getString(m, "missing", "foo"))
	assert.Equal(t, "", getString(m, "missing1", "missing2"))
}

func TestGetString_NumericValue(t *testing.T) {
	m := map[string]any{"count": float64(42)}
	assert.Equal(t, "42", getString(m, "count"))
}

func TestGetFloat_Fallback(t *testing.T) {
	m := map[string]any{"score": 95.5}
	v, ok := getFloat(m, "missing", "score")
	assert.True(t, ok)
	assert.Equal(t, 95.5, v)

	_, ok = getFloat(m, "missing1", "missing2")
	assert.False(t, ok)
}

func TestGetFloat_NonNumeric(t *testing.T) {
	m := map[string]any{"score": "not a number"}
	_, ok := getFloat(m, "score")
	assert.False(t, ok)
}

// ============================================================
// Concurrency / race detection
// ============================================================

func TestHandlers_ConcurrentCalls(t *testing.T) {
	var callCount atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"enrolledProfiles": 1})
	})
	mux.HandleFunc("/v1/users/alice/profile", func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"userId": "alice", "enrolled": true})
	})
	mux.HandleFunc("/v1/users/alice/assessments", func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"userId": "alice", "assessments": []any{}, "count": 0})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			h.HandleGetServiceStats(context.Background(), makeRequest(nil))
			h.HandleGetUserProfile(context.Background(), makeRequest(map[string]any{"user_id": "alice"}))
			h.HandleGetUserAssessments(context.Background(), makeRequest(map[string]any{"user_id": "alice"}))
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	assert.Equal(t, int32(60), callCount.Load())
}

// ============================================================
// Server wiring test
// ============================================================

func TestNewMCPServer_RegistersAllTools(t *testing.T) {
	s := NewMCPServer(Config{APIURL: "http://localhost:8080"})
	require.NotNil(t, s)
	// The server should not be nil — that's the main assertion.
	// We can't easily inspect registered tools without calling ListTools,
	// but we can verify it doesn't panic.
}

// ============================================================
// Edge cases: handler never returns Go error
// ============================================================

func TestHandlers_NeverReturnGoError(t *testing.T) {
	// All handlers should return (result, nil) even on failures.
	// The failure is encoded in result.IsError, not in the Go error.
	h := NewHandlers(NewContinuumClient(Config{
		APIURL: "http://127.0.0.1:1", // unreachable
	}))

	tests := []struct {
		name string
		fn   func() (*mcp.CallToolResult, error)
	}{
		{"AuthenticateSession", func() (*mcp.CallToolResult, error) {
			return h.HandleAuthenticateSession(context.Background(), makeRequest(map[string]any{
				"user_id": "alice", "sample": sampleArgs(),
			}))
		}},
		{"EnrollUser", func() (*mcp.CallToolResult, error) {
			return h.HandleEnrollUser(context.Background(), makeRequest(map[string]any{
				"user_id": "alice", "samples": vectorListArgs(5), "history": vectorListArgs(15),
			}))
		}},
		{"GetUserAssessments", func() (*mcp.CallToolResult, error) {
			return h.HandleGetUserAssessments(context.Background(), makeRequest(map[string]any{"user_id": "alice"}))
		}},
		{"GetUserProfile", func() (*mcp.CallToolResult, error) {
			return h.HandleGetUserProfile(context.Background(), makeRequest(map[string]any{"user_id": "alice"}))
		}},
		{"GetServiceStats", func() (*mcp.CallToolResult, error) {
			return h.HandleGetServiceStats(context.Background(), makeRequest(nil))
		}},
		{"FlagUser", func() (*mcp.CallToolResult, error) {
			return h.HandleFlagUser(context.Background(), makeRequest(map[string]any{"user_id": "mallory"}))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.fn()
			assert.NoError(t, err, "handler should never return Go error")
			assert.NotNil(t, result, "handler should always return a result")
			assert.True(t, result.IsError, "unreachable server should produce isError result")
		})
	}
}
