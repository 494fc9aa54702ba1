package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aptsec/samplerelay/pkg/downloader"
)

// mcpOutputDirname is the remote and scratch directory name used for
// tool-initiated downloads
const mcpOutputDirname = "mcp_download"

type downloadSamplesArgs struct {
	HashList  []string `json:"hash_list" jsonschema:"list of SHA256 hashes to download"`
	OutputDir string   `json:"output_dir,omitempty" jsonschema:"local directory to save samples to, defaults to the configured download directory"`
}

type ruleSHA256Args struct {
	Rule      string `json:"rule" jsonschema:"YARA rule name, e.g. APT_xxx"`
	Namespace string `json:"namespace,omitempty" jsonschema:"optional YARA file path for exact matching, e.g. ./yara_rules/xxx/pe_rules/abc.yara"`
}

type ruleSHA256Result struct {
	Success      bool     `json:"success"`
	SHA256Hashes []string `json:"sha256_hashes"`
	Count        int      `json:"count"`
	Error        string   `json:"error,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "download_samples",
		Description: "Download malware samples by SHA256 hash into a local directory.",
	}, s.handleDownloadSamples)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_rule_sha256_list",
		Description: "Get the SHA256 hash list for a YARA rule, ready for download_samples.",
	}, s.handleGetRuleSHA256List)
}

func (s *Server) handleDownloadSamples(ctx context.Context, req *mcp.CallToolRequest, args downloadSamplesArgs) (*mcp.CallToolResult, any, error) {
	outputDir := args.OutputDir
	if outputDir == "" {
		outputDir = s.downloadDir
	}

	res := s.downloader.Download(downloader.Request{
		HashList:       args.HashList,
		LocalOutputDir: outputDir,
		OutputDirname:  mcpOutputDirname,
		CleanupRemote:  true,
		FlatOutput:     true,
	})
	if !res.Success {
		return errorResult(fmt.Sprintf("Failed to download samples: %s", res.Error)), nil, nil
	}
	return textResult(fmt.Sprintf("Successfully downloaded samples to %s", res.LocalPath)), nil, nil
}

func (s *Server) handleGetRuleSHA256List(ctx context.Context, req *mcp.CallToolRequest, args ruleSHA256Args) (*mcp.CallToolResult, ruleSHA256Result, error) {
	if s.rules == nil {
		return nil, ruleSHA256Result{
			SHA256Hashes: []string{},
			Error:        "Rule hash mapping not loaded. Please ensure Rule_Hash_Mapping.csv exists.",
		}, nil
	}
	if args.Rule == "" {
		return nil, ruleSHA256Result{
			SHA256Hashes: []string{},
			Error:        "rule is required",
		}, nil
	}

	hashes := s.rules.SHA256List(args.Rule, args.Namespace)
	if len(hashes) == 0 {
		return nil, ruleSHA256Result{
			SHA256Hashes: []string{},
			Error:        fmt.Sprintf("no hashes found for rule %q", args.Rule),
		}, nil
	}

	return nil, ruleSHA256Result{
		Success:      true,
		SHA256Hashes: hashes,
		Count:        len(hashes),
	}, nil
}

// textResult creates a CallToolResult with a single text content block
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// errorResult creates an IsError CallToolResult so the client model can see
// the failure and adjust instead of hitting a protocol-level error
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
