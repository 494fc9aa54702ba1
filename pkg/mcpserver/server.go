// Package mcpserver exposes sample downloading and rule hash lookup as
// model-context-protocol tools over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aptsec/samplerelay/pkg/downloader"
	"github.com/aptsec/samplerelay/pkg/rulemap"
)

// Server wraps the MCP server with the APT analysis tools.
type Server struct {
	mcp         *mcp.Server
	downloader  *downloader.Downloader
	rules       *rulemap.Mapping
	downloadDir string
}

// New creates the MCP server with all tools registered. rules may be nil when
// the mapping file could not be loaded; the lookup tool then reports a clear
// error per call instead of failing the whole server.
func New(dl *downloader.Downloader, rules *rulemap.Mapping, downloadDir, version string) *Server {
	s := &Server{
		downloader:  dl,
		rules:       rules,
		downloadDir: downloadDir,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "apt-analysis",
			Title:   "APT Sample Analysis MCP Server",
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for direct access (e.g. testing)
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// RunStdio runs the MCP server over stdio transport until ctx is done.
// This is the primary mode for IDE and desktop-client integrations.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns an http.Handler serving the streamable HTTP transport
// plus a /health probe endpoint.
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		nil,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"apt-analysis"}`))
}

const serverInstructions = `This server provides tools for APT malware sample analysis workflows.

- get_rule_sha256_list: look up the SHA256 hashes of samples matched by a YARA rule. Pass the rule name, and optionally the namespace (the rule file path) for an exact match.
- download_samples: fetch sample files by SHA256 hash from the analysis host. The samples land in a local directory and the tool returns its path. Downloads run through an SSH bastion and can take several minutes for large hash lists.

A typical workflow chains the two: resolve a rule to its hash list, then download those hashes.`
