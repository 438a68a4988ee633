package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gateway-fm/nodeload/pkg/types"
)

// RegisterTools registers all load generator tools on the MCP server.
func RegisterTools(s *server.MCPServer, client *Client) {
	registerStats(s, client)
	registerHistory(s, client)
	registerHealth(s, client)
}

func registerStats(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("loadgen_stats",
		gomcp.WithDescription("Get live load generator stats: total iterations, failed calls, current and average RPS, RPC latency percentiles."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Get("/v1/stats")
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Load generator unreachable: %v\n\nIs it running with -listen set?", err)), nil
		}
		return gomcp.NewToolResultText(formatStats(raw)), nil
	})
}

func registerHistory(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("loadgen_history",
		gomcp.WithDescription("List stored report samples for the current run. Requires the load generator to run with a database."),
		gomcp.WithNumber("limit",
			gomcp.Description("Max samples to return (default: 20)"),
		),
		gomcp.WithNumber("offset",
			gomcp.Description("Samples offset for pagination (default: 0)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		offset := req.GetInt("offset", 0)
		path := fmt.Sprintf("/v1/history?limit=%d&offset=%d", limit, offset)

		raw, err := client.Get(path)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("History failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatHistory(raw)), nil
	})
}

func registerHealth(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("loadgen_health",
		gomcp.WithDescription("Quick health check for the load generator. Checks that the target node answers JSON-RPC."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Get("/ready")
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Load generator unhealthy: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatHealth(raw)), nil
	})
}

func formatStats(raw json.RawMessage) string {
	var st types.StatsResponse
	if err := json.Unmarshal(raw, &st); err != nil {
		return string(raw)
	}

	var errRate float64
	if st.Total > 0 {
		errRate = float64(st.Errors) / float64(st.Total) * 100
	}

	lines := []string{
		section("Load Generator"),
		kv("Run", st.Run.ID),
		kv("Status", st.Status),
		kv("Endpoint", st.Run.Endpoint),
		kv("Workers", st.Run.Workers),
		kv("Elapsed", formatDuration(st.ElapsedSec)),
		"",
		section("Throughput"),
		kv("Iterations", formatNumber(st.Total)),
		kv("Failed calls", formatNumber(st.Errors)),
		kv("Errors/iteration", formatPct(errRate)),
		kv("Current RPS", formatRPS(st.CurrentRPS)),
		kv("Average RPS", formatRPS(st.AverageRPS)),
	}

	if l := st.Latency; l != nil && l.Count > 0 {
		lines = append(lines,
			"",
			section("RPC Latency"),
			kv("Samples", formatNumber(l.Count)),
			kv("Min / Avg / Max", fmt.Sprintf("%s / %s / %s", formatMs(l.Min), formatMs(l.Avg), formatMs(l.Max))),
			kv("P50 / P95 / P99", fmt.Sprintf("%s / %s / %s", formatMs(l.P50), formatMs(l.P95), formatMs(l.P99))),
		)
	}

	return joinLines(lines...)
}

func formatHistory(raw json.RawMessage) string {
	var h types.HistoryResponse
	if err := json.Unmarshal(raw, &h); err != nil {
		return string(raw)
	}

	if len(h.Samples) == 0 {
		return fmt.Sprintf("No samples stored for run %s (total %d).", h.Run.ID, h.Total)
	}

	lines := []string{
		section(fmt.Sprintf("History for %s (%d-%d of %d)", h.Run.ID, h.Offset+1, h.Offset+len(h.Samples), h.Total)),
	}
	for _, s := range h.Samples {
		lines = append(lines, fmt.Sprintf("- %s  RPS: %s  Total: %s  Errors: %s",
			s.Timestamp.UTC().Format(time.RFC3339),
			formatRPS(s.RPS),
			formatNumber(s.Total),
			formatNumber(s.Errors),
		))
	}

	return joinLines(lines...)
}

func formatHealth(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return string(raw)
	}

	ready, _ := m["ready"].(bool)
	status := "NOT READY"
	if ready {
		status = "READY"
	}

	lines := []string{
		section("Health: " + status),
	}

	if checks, ok := m["checks"].([]any); ok {
		for _, c := range checks {
			if check, ok := c.(map[string]any); ok {
				line := fmt.Sprintf("- %s: %s (%s)", getStr(check, "name"), getStr(check, "status"), formatMs(getNum(check, "latency_ms")))
				if e := getStr(check, "error"); e != "" {
					line += " - " + e
				}
				lines = append(lines, line)
			}
		}
	}

	return joinLines(lines...)
}

func getStr(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getNum(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		if n, ok := v.(float64); ok {
			return n
		}
	}
	return 0
}
