// Package mcp exposes a branchmind session as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/errs"
	"github.com/memvra/branchmind/internal/session"
)

type handlerFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Server adapts a Session to the MCP tool interface. Tool calls are
// serialized: the session runs one operation at a time.
type Server struct {
	sess     *session.Session
	mcp      *server.MCPServer
	handlers map[string]handlerFunc
	mu       sync.Mutex
	log      *zap.Logger
}

// NewServer registers every tool against sess.
func NewServer(sess *session.Session, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		sess:     sess,
		mcp:      server.NewMCPServer("branchmind", version, server.WithToolCapabilities(false)),
		handlers: make(map[string]handlerFunc),
		log:      log,
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ToolNames lists the registered tools, sorted.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes a tool directly, bypassing the transport. The REPL and
// tests use it.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	h, ok := s.handlers[name]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("validation: unknown tool %q", name)), nil
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return h(ctx, req)
}

func (s *Server) add(tool mcp.Tool, h handlerFunc) {
	wrapped := s.guard(tool.Name, h)
	s.handlers[tool.Name] = wrapped
	s.mcp.AddTool(tool, server.ToolHandlerFunc(wrapped))
}

// guard serializes calls and turns panics into internal error results, so
// nothing escapes a tool call unclassified.
func (s *Server) guard(name string, h handlerFunc) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (res *mcp.CallToolResult, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("tool panicked", zap.String("tool", name), zap.Any("panic", r))
				res, err = errorResult(errs.Internal(name, fmt.Errorf("panic: %v", r))), nil
			}
		}()
		return h(ctx, req)
	}
}

// errorResult renders err as a tool error whose text starts with its kind.
func errorResult(err error) *mcp.CallToolResult {
	var e *errs.Error
	if errors.As(err, &e) {
		return mcp.NewToolResultError(e.Error())
	}
	return mcp.NewToolResultError(string(errs.KindInternal) + ": " + err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errorResult(errs.Internal("encode result", err)), nil
	}
	return mcp.NewToolResultText(strings.TrimSuffix(sb.String(), "\n")), nil
}

// bind decodes the tool arguments into dst through their JSON form.
func bind(op string, req mcp.CallToolRequest, dst any) error {
	data, err := json.Marshal(req.GetArguments())
	if err != nil {
		return errs.Validation(op, "invalid arguments: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errs.Validation(op, "invalid arguments: %v", err)
	}
	return nil
}
