package ssh

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
)

// Upload copies a single local file to remotePath on the target host.
// Single-shot: transfer failures are returned to the caller without retry.
func (c *Client) Upload(localFile, remotePath string, timeout time.Duration) error {
	data, err := os.ReadFile(localFile)
	if err != nil {
		return fmt.Errorf("failed to read local file %s: %w", localFile, err)
	}

	client, err := c.connect()
	if err != nil {
		return err
	}

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := session.Start(fmt.Sprintf("cat > %s", remotePath)); err != nil {
		return fmt.Errorf("failed to start upload to %s: %w", remotePath, err)
	}

	done := make(chan error, 1)
	go func() {
		if _, err := stdin.Write(data); err != nil {
			stdin.Close()
			done <- fmt.Errorf("failed to write file data: %w", err)
			return
		}
		stdin.Close()
		done <- session.Wait()
	}()

	err, timedOut := awaitSession(done, timeout)
	if timedOut {
		return fmt.Errorf("upload of %s timed out after %s", localFile, timeout)
	}
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", localFile, remotePath, err)
	}
	return nil
}

// DownloadDir recursively copies remoteDir from the target host into localDir,
// creating the local parent directory first. Single-shot, no retry.
func (c *Client) DownloadDir(remoteDir, localDir string, timeout time.Duration) error {
	if parent := filepath.Dir(localDir); parent != "." {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return fmt.Errorf("failed to create local directory %s: %w", parent, err)
		}
	}

	client, err := c.connect()
	if err != nil {
		return err
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("failed to open SFTP session: %w", err)
	}
	defer sftpClient.Close()

	done := make(chan error, 1)
	go func() {
		done <- copyRemoteDir(sftpClient, remoteDir, localDir)
	}()

	err, timedOut := awaitSession(done, timeout)
	if timedOut {
		return fmt.Errorf("download of %s timed out after %s", remoteDir, timeout)
	}
	return err
}

// copyRemoteDir walks remoteDir over SFTP and mirrors regular files and
// subdirectories under localDir
func copyRemoteDir(client *sftp.Client, remoteDir, localDir string) error {
	info, err := client.Stat(remoteDir)
	if err != nil {
		return fmt.Errorf("failed to stat remote directory %s: %w", remoteDir, err)
	}
	if !info.IsDir() {
		return copyRemoteFile(client, remoteDir, localDir)
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return fmt.Errorf("failed to create local directory %s: %w", localDir, err)
	}

	entries, err := client.ReadDir(remoteDir)
	if err != nil {
		return fmt.Errorf("failed to list remote directory %s: %w", remoteDir, err)
	}

	for _, entry := range entries {
		remotePath := path.Join(remoteDir, entry.Name())
		localPath := filepath.Join(localDir, entry.Name())

		if entry.IsDir() {
			if err := copyRemoteDir(client, remotePath, localPath); err != nil {
				return err
			}
			continue
		}
		if !entry.Mode().IsRegular() {
			// symlinks and specials are skipped, samples are plain files
			continue
		}
		if err := copyRemoteFile(client, remotePath, localPath); err != nil {
			return err
		}
	}
	return nil
}

func copyRemoteFile(client *sftp.Client, remotePath, localPath string) error {
	src, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	return nil
}
