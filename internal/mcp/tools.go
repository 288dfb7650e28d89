package mcp

import "github.com/mark3labs/mcp-go/mcp"

var addInsulinToolDef = mcp.NewTool("record_add_insulin",
	mcp.WithDescription("Record an insulin dose in whole units."),
	mcp.WithNumber("units", mcp.Required(), mcp.Description("Dose in units, a positive whole number")),
	mcp.WithString("at", mcp.Description("RFC 3339 time of the dose; defaults to now")),
)

var addGlucoseToolDef = mcp.NewTool("record_add_glucose",
	mcp.WithDescription("Record a blood glucose reading."),
	mcp.WithNumber("value", mcp.Required(), mcp.Description("Reading value, positive")),
	mcp.WithString("unit", mcp.Description("mg/dL (default) or mmol/L")),
	mcp.WithString("at", mcp.Description("RFC 3339 time of the reading; defaults to now")),
)

var voiceInsulinToolDef = mcp.NewTool("record_voice_insulin",
	mcp.WithDescription("Record an insulin dose from transcribed speech such as \"5 units\" or \"٥ وحدات\"."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Recognized speech text")),
)

var deleteToolDef = mcp.NewTool("record_delete",
	mcp.WithDescription("Delete one record by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
)

var deleteAllToolDef = mcp.NewTool("record_delete_all",
	mcp.WithDescription("Delete every record. Cannot be undone."),
	mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true")),
)

var listToolDef = mcp.NewTool("record_list",
	mcp.WithDescription("List records grouped by day, newest day first; insulin before glucose within a day."),
	mcp.WithNumber("days", mcp.Description("Limit to the most recent N day groups")),
)

var summaryToolDef = mcp.NewTool("record_summary",
	mcp.WithDescription("Latest glucose reading, latest insulin dose and the recent glucose trend."),
)

var syncToolDef = mcp.NewTool("health_sync",
	mcp.WithDescription("Import recent glucose readings from the configured health source. Re-importing is idempotent."),
	mcp.WithNumber("limit", mcp.Description("Maximum samples to fetch; defaults to history_limit")),
)

var exportToolDef = mcp.NewTool("report_export",
	mcp.WithDescription("Export the glucose report as a right-to-left HTML document."),
	mcp.WithString("path", mcp.Description("Destination .html path; defaults to ~/.glyco/exports")),
	mcp.WithBoolean("share", mcp.Description("Also publish through the configured share target")),
)
