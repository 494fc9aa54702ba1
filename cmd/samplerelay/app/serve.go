package app

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aptsec/samplerelay/pkg/downloader"
	"github.com/aptsec/samplerelay/pkg/log"
	"github.com/aptsec/samplerelay/pkg/mcpserver"
	"github.com/aptsec/samplerelay/pkg/rulemap"
	"github.com/aptsec/samplerelay/pkg/ssh"
)

var httpAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run the MCP server over stdio (default) or streamable HTTP.
Stdio is the mode MCP desktop clients expect; pass --http to listen on a
TCP address instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// a missing mapping degrades the lookup tool, it does not stop the server
		var rules *rulemap.Mapping
		if cfg.RuleHashMappingFile != "" {
			rules, err = rulemap.Load(cfg.RuleHashMappingFile)
			if err != nil {
				log.Warningf("Failed to load rule hash mapping: %v", err)
			} else {
				log.Infof("Loaded %d rule mappings from %s", rules.Len(), rules.Path())
			}
		} else {
			log.Warning("No ruleHashMappingFile configured, get_rule_sha256_list is disabled")
		}

		client := ssh.NewClient(cfg.Jumper, cfg.Target)
		defer client.Close()

		dl := downloader.New(client, cfg.Target.Workdir, cfg.CollectorCommand, downloader.StdLogger{})
		server := mcpserver.New(dl, rules, cfg.LocalDownloadDir, version)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if httpAddr != "" {
			return serveHTTP(ctx, server, httpAddr)
		}
		log.Info("Serving MCP over stdio")
		return server.RunStdio(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "http", "", "Serve over streamable HTTP on this address (e.g. :8080) instead of stdio")
}

func serveHTTP(ctx context.Context, server *mcpserver.Server, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.HTTPHandler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Serving MCP over HTTP on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
