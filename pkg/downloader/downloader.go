package downloader

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aptsec/samplerelay/pkg/config"
)

const (
	// remoteHashFileName is the fixed name of the hash list on the target host
	remoteHashFileName = "hashList.txt"
	// DefaultOutputDirname is used when a request does not name its own
	DefaultOutputDirname = "samples"

	maxRetries     = 3
	uploadTimeout  = 300 * time.Second
	collectTimeout = 600 * time.Second
	// directory downloads move the actual sample payloads, give them the
	// same extended budget as the collector run
	downloadTimeout = 600 * time.Second
	cleanupTimeout  = 300 * time.Second
)

// CommandRunner executes a command on the target host with bounded retries
type CommandRunner interface {
	RunCommand(command string, maxRetries int, timeout time.Duration) (exitCode int, stdout, stderr string)
}

// FileTransfer moves files between the local machine and the target host
type FileTransfer interface {
	Upload(localFile, remotePath string, timeout time.Duration) error
	DownloadDir(remoteDir, localDir string, timeout time.Duration) error
}

// Remote is the full remote-host capability the downloader needs
type Remote interface {
	CommandRunner
	FileTransfer
}

// Request describes one sample download operation
type Request struct {
	// HashList is the ordered list of SHA256 hashes to collect; duplicates
	// are passed through untouched
	HashList []string
	// LocalOutputDir is the local directory that receives the samples
	LocalOutputDir string
	// OutputDirname names the output directory on both the target host and,
	// unless FlatOutput is set, under LocalOutputDir
	OutputDirname string
	// CleanupRemote removes the remote output directory after download
	CleanupRemote bool
	// FlatOutput places the retrieved files directly into LocalOutputDir
	// instead of a subdirectory named OutputDirname
	FlatOutput bool
}

// Result is the terminal outcome of a download: either Success with LocalPath
// set, or failure with Error set — never both
type Result struct {
	Success   bool
	LocalPath string
	Error     string
}

func failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

func success(localPath string) Result {
	return Result{Success: true, LocalPath: localPath}
}

// Downloader orchestrates sample collection on a remote analysis host:
// upload the hash list, run the collector, retrieve the output directory,
// clean up. One request at a time; concurrent requests would collide on the
// shared remote workspace paths.
type Downloader struct {
	remote       Remote
	workdir      string
	collectorCmd string
	logger       Logger
}

// New creates a downloader operating in workdir on the target host.
// collectorCmd is the command prefix of the collection script; logger may be
// nil for silent operation.
func New(remote Remote, workdir, collectorCmd string, logger Logger) *Downloader {
	if collectorCmd == "" {
		collectorCmd = config.DefaultCollectorCommand
	}
	if logger == nil {
		logger = NopLogger{}
	}
	return &Downloader{
		remote:       remote,
		workdir:      workdir,
		collectorCmd: collectorCmd,
		logger:       logger,
	}
}

// Download runs the full collection sequence for req. All failures are
// reported through the Result, never as a panic; the local temp hash list is
// removed on every return path.
func (d *Downloader) Download(req Request) Result {
	if len(req.HashList) == 0 {
		return failure("hash list is empty")
	}
	if req.OutputDirname == "" {
		req.OutputDirname = DefaultOutputDirname
	}

	d.logger.Infof("Starting download of %d samples", len(req.HashList))

	hashFile, err := writeHashList(req.HashList)
	if err != nil {
		return failure("failed to create hash list file: %v", err)
	}
	defer os.Remove(hashFile)
	d.logger.Infof("Created hash list file %s", hashFile)

	remoteHashFile := path.Join(d.workdir, remoteHashFileName)
	d.logger.Infof("Uploading hash list to target host")
	if err := d.remote.Upload(hashFile, remoteHashFile, uploadTimeout); err != nil {
		return failure("failed to upload hash list: %v", err)
	}

	d.logger.Infof("Running collection script on target host")
	collectCmd := fmt.Sprintf("cd %s && %s --input ./%s --output ./%s",
		d.workdir, d.collectorCmd, remoteHashFileName, req.OutputDirname)
	code, stdout, stderr := d.remote.RunCommand(collectCmd, maxRetries, collectTimeout)
	if code != 0 {
		return failure("collection script failed: %s", stderr)
	}
	if out := strings.TrimSpace(stdout); out != "" {
		d.logger.Infof("Collector output: %s", out)
	}

	localOutputDir, err := filepath.Abs(req.LocalOutputDir)
	if err != nil {
		return failure("failed to resolve local output directory %s: %v", req.LocalOutputDir, err)
	}
	if err := os.MkdirAll(localOutputDir, 0755); err != nil {
		return failure("failed to create local output directory %s: %v", localOutputDir, err)
	}

	remoteOutputDir := path.Join(d.workdir, req.OutputDirname)
	d.logger.Infof("Downloading samples from target host")

	var localPath string
	if req.FlatOutput {
		localPath, err = d.downloadFlat(remoteOutputDir, localOutputDir, req.OutputDirname)
	} else {
		localPath = filepath.Join(localOutputDir, req.OutputDirname)
		err = d.remote.DownloadDir(remoteOutputDir, localPath, downloadTimeout)
	}
	if err != nil {
		return failure("failed to download samples: %v", err)
	}

	if req.CleanupRemote {
		d.logger.Infof("Removing remote output directory")
		cleanupCmd := fmt.Sprintf("cd %s && rm -rf %s", d.workdir, req.OutputDirname)
		if code, _, stderr := d.remote.RunCommand(cleanupCmd, maxRetries, cleanupTimeout); code != 0 {
			// best effort, a leftover remote directory never fails the download
			d.logger.Errorf("Failed to remove remote output directory: %s", stderr)
		}
	}

	d.logger.Infof("Download complete, samples saved to %s", localPath)
	return success(localPath)
}

// downloadFlat retrieves the remote output directory into a scratch directory
// and then moves its entries directly into localOutputDir, so the caller's
// directory receives the files without an extra nesting level
func (d *Downloader) downloadFlat(remoteOutputDir, localOutputDir, outputDirname string) (string, error) {
	scratchDir, err := os.MkdirTemp("", "samplerelay-scratch-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	scratchPath := filepath.Join(scratchDir, outputDirname)
	if err := d.remote.DownloadDir(remoteOutputDir, scratchPath, downloadTimeout); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(scratchPath)
	if err != nil {
		return "", fmt.Errorf("failed to list downloaded directory %s: %w", scratchPath, err)
	}
	for _, entry := range entries {
		src := filepath.Join(scratchPath, entry.Name())
		dst := filepath.Join(localOutputDir, entry.Name())
		if err := moveEntry(src, dst); err != nil {
			return "", err
		}
	}
	return localOutputDir, nil
}

// writeHashList writes the hashes one per line to a fresh temp file and
// returns its path
func writeHashList(hashes []string) (string, error) {
	f, err := os.CreateTemp("", "samplerelay-hashlist-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(strings.Join(hashes, "\n")); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// moveEntry renames src to dst, falling back to copy-and-delete when rename
// crosses filesystems (the scratch directory lives under the system temp dir)
func moveEntry(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyEntry(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyEntry(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if info.IsDir() {
		if err := os.MkdirAll(dst, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dst, err)
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return fmt.Errorf("failed to list directory %s: %w", src, err)
		}
		for _, entry := range entries {
			if err := copyEntry(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
