package press

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mwinterhoff/presswerk/issue"
	"github.com/mwinterhoff/presswerk/store"
)

var testMCPImpl = &mcp.Implementation{Name: "presswerk-test", Version: "0.1.0"}

func mcpSession(t *testing.T, sup *Supervisor) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	sup.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_RenderAndStatus(t *testing.T) {
	st := store.OpenMemory(t)
	seedIssue(t, st)
	if err := st.SeedBuiltinPacks(context.Background()); err != nil {
		t.Fatal(err)
	}
	sup := New(Config{
		Store:        st,
		Renderer:     &fakeRenderer{pdf: []byte("%PDF")},
		ArtifactsDir: t.TempDir(),
		Logger:       slog.New(slog.DiscardHandler),
	})
	session := mcpSession(t, sup)

	text := mcpCallTool(t, session, "render_issue", map[string]any{"issue_id": "2026-03"})
	var job issue.RenderJob
	if err := json.Unmarshal([]byte(text), &job); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if job.ID == "" || job.IssueID != "2026-03" {
		t.Fatalf("job = %+v", job)
	}

	// The job runs in the background; poll until terminal.
	deadline := time.Now().Add(5 * time.Second)
	for {
		text = mcpCallTool(t, session, "render_job_status", map[string]any{"job_id": job.ID})
		var got issue.RenderJob
		if err := json.Unmarshal([]byte(text), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Status.Terminal() {
			if got.Status != issue.JobCompleted {
				t.Fatalf("job = %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never finished: %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMCP_RenderUnknownIssue(t *testing.T) {
	st := store.OpenMemory(t)
	sup := New(Config{Store: st, ArtifactsDir: t.TempDir(), Logger: slog.New(slog.DiscardHandler)})
	session := mcpSession(t, sup)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "render_issue",
		Arguments: map[string]any{"issue_id": "fehlt"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown issue")
	}
}
