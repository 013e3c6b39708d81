package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *ContinuumClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *ContinuumClient) *Handlers {
	return &Handlers{client: client}
}

// HandleAuthenticateSession evaluates one behavioral sample.
func (h *Handlers) HandleAuthenticateSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	sample, ok := toFloats(req.GetArguments()["sample"])
	if !ok {
		return mcp.NewToolResultError("sample must be an array of 10 numbers"), nil
	}

	body := map[string]any{
		"userId":     userID,
		"age":        req.GetInt("age", 0),
		"sample":     sample,
		"deviceId":   req.GetString("device_id", ""),
		"sourceAddr": req.GetString("source_addr", ""),
	}
	if loc, ok := req.GetArguments()["location"].(map[string]any); ok {
		body["location"] = loc
	}

	raw, err := h.client.Authenticate(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	text, err := formatDecision(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleEnrollUser creates a profile from an explicit batch.
func (h *Handlers) HandleEnrollUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	samples, ok := toVectorList(req.GetArguments()["samples"])
	if !ok {
		return mcp.NewToolResultError("samples must be an array of numeric vectors"), nil
	}
	history, ok := toVectorList(req.GetArguments()["history"])
	if !ok {
		return mcp.NewToolResultError("history must be an array of numeric vectors"), nil
	}

	body := map[string]any{
		"userId":  userID,
		"age":     req.GetInt("age", 0),
		"samples": samples,
		"history": history,
	}

	raw, err := h.client.Enroll(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Enrollment failed: %v", err)), nil
	}

	var resp struct {
		UserID  string `json:"userId"`
		Created bool   `json:"created"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse response: %v", err)), nil
	}

	if resp.Created {
		return mcp.NewToolResultText(fmt.Sprintf("Profile created for %s.", resp.UserID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Profile for %s already existed; nothing changed.", resp.UserID)), nil
}

// HandleGetUserAssessments fetches the audit trail for a user.
func (h *Handlers) HandleGetUserAssessments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	limit := req.GetInt("limit", 20)

	raw, err := h.client.GetAssessments(ctx, userID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get assessments: %v", err)), nil
	}

	text, err := formatAssessments(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessments: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetUserProfile returns the profile summary for a user.
func (h *Handlers) HandleGetUserProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	raw, err := h.client.GetProfile(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get profile: %v", err)), nil
	}

	text, err := formatProfile(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse profile: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetServiceStats returns service statistics.
func (h *Handlers) HandleGetServiceStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get stats: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleFlagUser flags a user in the session graph.
func (h *Handlers) HandleFlagUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	if _, err := h.client.FlagUser(ctx, userID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Flag failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"User %s flagged as confirmed fraudulent.\n"+
			"Shared devices and addresses are now tainted for other users.",
		userID)), nil
}

// --- Formatting helpers ---

func formatDecision(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Authentication Decision:\n")
	sb.WriteString(fmt.Sprintf("  User: %s\n", getString(m, "userId")))
	sb.WriteString(fmt.Sprintf("  Tier: %s | Label: %s\n", getString(m, "tier"), getString(m, "label")))
	if v, ok := getFloat(m, "score"); ok {
		sb.WriteString(fmt.Sprintf("  Score: %.3f\n", v))
	}
	if factors, ok := m["factors"].(map[string]any); ok && len(factors) > 0 {
		sb.WriteString("  Factors:\n")
		for _, k := range []string{"graph_risk", "drift_anomaly", "similarity_risk"} {
			if v, ok := factors[k].(float64); ok {
				sb.WriteString(fmt.Sprintf("    %s: %.3f\n", k, v))
			}
		}
	}
	if flags, ok := m["flags"].([]any); ok && len(flags) > 0 {
		strs := make([]string, 0, len(flags))
		for _, f := range flags {
			if s, ok := f.(string); ok {
				strs = append(strs, s)
			}
		}
		sb.WriteString(fmt.Sprintf("  Flags: %s\n", strings.Join(strs, ", ")))
	}
	if enrolled, ok := m["enrolled"].(bool); ok && enrolled {
		sb.WriteString("  Note: first contact; profile was bootstrapped from this sample\n")
	}
	sb.WriteString(fmt.Sprintf("  Assessment ID: %s\n", getString(m, "assessmentId")))

	return sb.String(), nil
}

func formatAssessments(raw json.RawMessage) (string, error) {
	var resp struct {
		UserID      string           `json:"userId"`
		Assessments []map[string]any `json:"assessments"`
		Count       int              `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if resp.Count == 0 {
		return fmt.Sprintf("No assessments recorded for %s.", resp.UserID), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Last %d assessment(s) for %s (most recent first):\n\n", resp.Count, resp.UserID))
	for i, a := range resp.Assessments {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, getString(a, "tier"), getString(a, "label")))
		if v, ok := getFloat(a, "score"); ok {
			sb.WriteString(fmt.Sprintf(" (score %.3f)", v))
		}
		sb.WriteString("\n")
		if v := getString(a, "evaluatedAt"); v != "" {
			sb.WriteString(fmt.Sprintf("   At: %s\n", v))
		}
	}
	return sb.String(), nil
}

func formatProfile(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Profile Summary:\n")
	sb.WriteString(fmt.Sprintf("  User: %s\n", getString(m, "userId")))
	if v, ok := getFloat(m, "age"); ok {
		sb.WriteString(fmt.Sprintf("  Age: %.0f\n", v))
	}
	if v, ok := m["enrolled"].(bool); ok {
		sb.WriteString(fmt.Sprintf("  Enrolled: %v\n", v))
	}
	if v, ok := getFloat(m, "idleStreak"); ok {
		sb.WriteString(fmt.Sprintf("  Idle streak: %.0f\n", v))
	}
	if v, ok := getFloat(m, "historySamples"); ok {
		sb.WriteString(fmt.Sprintf("  History depth: %.0f samples\n", v))
	}
	if v := getString(m, "updatedAt"); v != "" {
		sb.WriteString(fmt.Sprintf("  Last updated: %s\n", v))
	}

	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// toFloats converts a raw tool argument into a float slice.
func toFloats(raw any) ([]float64, bool) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(arr))
	for _, v := range arr {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// toVectorList converts a raw tool argument into a list of float slices.
func toVectorList(raw any) ([][]float64, bool) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([][]float64, 0, len(arr))
	for _, item := range arr {
		vec, ok := toFloats(item)
		if !ok {
			return nil, false
		}
		out = append(out, vec)
	}
	return out, true
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
