package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Continuum MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAuthenticateSession = mcp.NewTool("authenticate_session",
	mcp.WithDescription(
		"Evaluate one behavioral sample for a user session against their enrolled profile. "+
			"Returns the decision tier (T1/T2/T3), label (PASS, SKIP, BLOCK, MANUAL_REVIEW), "+
			"the score, and any rule flags (impossible travel, abnormal session speed)."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("User identifier (lowercase alphanumerics, dots, dashes, underscores)")),
	mcp.WithNumber("age",
		mcp.Description("User's age in years; older cohorts get a variance allowance")),
	mcp.WithArray("sample",
		mcp.Required(),
		mcp.Description("The 10-element behavioral feature vector for the interval, in fixed feature order")),
	mcp.WithObject("location",
		mcp.Description("Location context: lastLogin, currentSession, prev30s, latest30s, each a {lat, lon} pair in decimal degrees")),
	mcp.WithString("device_id",
		mcp.Description("Device identifier for the session graph")),
	mcp.WithString("source_addr",
		mcp.Description("Source network address for the session graph")),
)

var ToolEnrollUser = mcp.NewTool("enroll_user",
	mcp.WithDescription(
		"Create a behavioral profile from an explicit enrollment batch. "+
			"Needs at least 5 sample vectors and 15 history vectors; smaller batches are rejected."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("User identifier")),
	mcp.WithNumber("age",
		mcp.Description("User's age in years")),
	mcp.WithArray("samples",
		mcp.Required(),
		mcp.Description("Array of 10-element behavioral vectors (at least 5) used to fit the reference profile")),
	mcp.WithArray("history",
		mcp.Required(),
		mcp.Description("Array of 10-element behavioral vectors (at least 15) seeding the drift history")),
)

var ToolGetUserAssessments = mcp.NewTool("get_user_assessments",
	mcp.WithDescription(
		"Fetch a user's recent authentication assessments from the audit trail, most recent first. "+
			"Each entry shows the tier, label, score, contributing risk factors, and rule flags."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("User identifier")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of assessments to return (default 20)")),
)

var ToolGetUserProfile = mcp.NewTool("get_user_profile",
	mcp.WithDescription(
		"Get a user's profile summary: enrollment state, idle streak, history depth, and timestamps. "+
			"Raw behavioral vectors are never exposed."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("User identifier")),
)

var ToolGetServiceStats = mcp.NewTool("get_service_stats",
	mcp.WithDescription(
		"Get Continuum service statistics: enrolled profile count, session graph size, "+
			"flagged user count, and realtime feed stats."),
)

var ToolFlagUser = mcp.NewTool("flag_user",
	mcp.WithDescription(
		"Mark a user as confirmed fraudulent after a manual review. Their devices and addresses "+
			"become tainted for every other user sharing them. Requires the admin secret."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("User identifier to flag")),
)
