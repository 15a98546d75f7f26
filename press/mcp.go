package press

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the render tools on an MCP server.
func (s *Supervisor) RegisterMCP(srv *mcp.Server) {
	s.registerRenderTool(srv)
	s.registerStatusTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// addTool adapts a typed endpoint to the MCP handler contract: decode the
// arguments, run, marshal the response as one text content block.
func addTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := endpoint(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- render_issue ---

type renderIssueReq struct {
	IssueID string `json:"issue_id"`
	PackID  string `json:"pack_id"`
}

func (s *Supervisor) registerRenderTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "render_issue",
		Description: "Start a render job for a magazine issue. Returns the queued job.",
		InputSchema: inputSchema(map[string]any{
			"issue_id": map[string]any{"type": "string", "description": "Issue to render"},
			"pack_id":  map[string]any{"type": "string", "description": "Template pack (empty = active pack)"},
		}, []string{"issue_id"}),
	}

	addTool(srv, tool, func(ctx context.Context, r *renderIssueReq) (any, error) {
		return s.Submit(ctx, r.IssueID, r.PackID)
	})
}

// --- render_job_status ---

type jobStatusReq struct {
	JobID string `json:"job_id"`
}

func (s *Supervisor) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "render_job_status",
		Description: "Fetch the current state of a render job: status, progress, warnings, artifact URL.",
		InputSchema: inputSchema(map[string]any{
			"job_id": map[string]any{"type": "string", "description": "Job to inspect"},
		}, []string{"job_id"}),
	}

	addTool(srv, tool, func(ctx context.Context, r *jobStatusReq) (any, error) {
		return s.cfg.Store.Job(ctx, r.JobID)
	})
}
