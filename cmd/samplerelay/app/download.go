package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aptsec/samplerelay/pkg/downloader"
	"github.com/aptsec/samplerelay/pkg/log"
	"github.com/aptsec/samplerelay/pkg/ssh"
)

var (
	downloadInput      string
	downloadOutputDir  string
	downloadDirname    string
	downloadFlat       bool
	downloadKeepRemote bool
)

var downloadCmd = &cobra.Command{
	Use:   "download [hash...]",
	Short: "Download samples by SHA256 hash",
	Long: `Download malware sample files for the given SHA256 hashes from the
analysis host, through the configured jump server. Hashes are taken from the
command line, or one per line from a file via --input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		hashes := args
		if downloadInput != "" {
			fileHashes, err := readHashFile(downloadInput)
			if err != nil {
				return err
			}
			hashes = append(hashes, fileHashes...)
		}

		outputDir := downloadOutputDir
		if outputDir == "" {
			outputDir = cfg.LocalDownloadDir
		}

		client := ssh.NewClient(cfg.Jumper, cfg.Target)
		defer client.Close()

		dl := downloader.New(client, cfg.Target.Workdir, cfg.CollectorCommand, downloader.StdLogger{})
		res := dl.Download(downloader.Request{
			HashList:       hashes,
			LocalOutputDir: outputDir,
			OutputDirname:  downloadDirname,
			CleanupRemote:  !downloadKeepRemote,
			FlatOutput:     downloadFlat,
		})
		if !res.Success {
			return fmt.Errorf("download failed: %s", res.Error)
		}

		log.Infof("Samples downloaded to %s", res.LocalPath)
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadInput, "input", "i", "", "File with SHA256 hashes, one per line")
	downloadCmd.Flags().StringVarP(&downloadOutputDir, "output", "o", "", "Local output directory (defaults to the configured download directory)")
	downloadCmd.Flags().StringVar(&downloadDirname, "dirname", "", "Output directory name on the target host and locally")
	downloadCmd.Flags().BoolVar(&downloadFlat, "flat", false, "Place files directly into the output directory")
	downloadCmd.Flags().BoolVar(&downloadKeepRemote, "keep-remote", false, "Keep the output directory on the target host after download")
}

// readHashFile reads newline-delimited hashes, skipping blank lines
func readHashFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hash file %s: %w", path, err)
	}

	var hashes []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			hashes = append(hashes, line)
		}
	}
	return hashes, nil
}
