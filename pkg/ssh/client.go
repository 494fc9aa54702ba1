package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/aptsec/samplerelay/pkg/config"
)

const dialTimeout = 15 * time.Second

// retryDelay is the fixed delay between command attempts, a variable so tests
// can run without sleeping
var retryDelay = 5 * time.Second

// Client runs commands and transfers files on a target host reached through
// a bastion (jumper) host. Connections are established lazily and reused
// until an attempt fails, at which point they are dropped and re-dialed.
type Client struct {
	jumper config.Endpoint
	target config.Target

	mu           sync.Mutex
	jumperClient *ssh.Client
	targetClient *ssh.Client

	// runAttempt performs a single command execution, a field so tests can
	// substitute a fake transport
	runAttempt func(command string, timeout time.Duration) (int, string, string, error)
}

// NewClient creates a client for the given jumper and target endpoints
func NewClient(jumper config.Endpoint, target config.Target) *Client {
	c := &Client{
		jumper: jumper,
		target: target,
	}
	c.runAttempt = c.execAttempt
	return c
}

// connect returns a connected target client, dialing the jumper first and
// tunneling the target connection through it
func (c *Client) connect() (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.targetClient != nil {
		return c.targetClient, nil
	}

	jumperConfig, err := clientConfig(c.jumper.User, c.jumper.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare jumper SSH config: %w", err)
	}
	jumperClient, err := ssh.Dial("tcp", c.jumper.Addr(), jumperConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to jumper %s: %w", c.jumper.Addr(), err)
	}

	conn, err := jumperClient.Dial("tcp", c.target.Addr())
	if err != nil {
		jumperClient.Close()
		return nil, fmt.Errorf("failed to reach target %s through jumper: %w", c.target.Addr(), err)
	}

	targetConfig, err := clientConfig(c.target.User, c.target.Key)
	if err != nil {
		conn.Close()
		jumperClient.Close()
		return nil, fmt.Errorf("failed to prepare target SSH config: %w", err)
	}
	ncc, chans, reqs, err := ssh.NewClientConn(conn, c.target.Addr(), targetConfig)
	if err != nil {
		conn.Close()
		jumperClient.Close()
		return nil, fmt.Errorf("failed to connect to target %s: %w", c.target.Addr(), err)
	}

	c.jumperClient = jumperClient
	c.targetClient = ssh.NewClient(ncc, chans, reqs)
	return c.targetClient, nil
}

// reset drops the cached connections so the next attempt re-dials
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.targetClient != nil {
		c.targetClient.Close()
		c.targetClient = nil
	}
	if c.jumperClient != nil {
		c.jumperClient.Close()
		c.jumperClient = nil
	}
}

// Close closes the target and jumper connections
func (c *Client) Close() error {
	c.reset()
	return nil
}

// RunCommand executes a command on the target host through the jumper.
// Transport failures (connection, auth, timeout) are retried up to maxRetries
// total attempts with a fixed delay between them; once exhausted, a synthetic
// failure of (-1, "", error text) is returned. A non-zero exit status from the
// remote command itself is not retried.
func (c *Client) RunCommand(command string, maxRetries int, timeout time.Duration) (int, string, string) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}

		code, stdout, stderr, err := c.runAttempt(command, timeout)
		if err == nil {
			return code, stdout, stderr
		}
		lastErr = err
		c.reset()
	}
	return -1, "", lastErr.Error()
}

// execAttempt performs one clean execution of command with a timeout.
// The returned error is non-nil only for transport-level failures; a remote
// command that ran and exited non-zero yields a nil error with its status.
func (c *Client) execAttempt(command string, timeout time.Duration) (int, string, string, error) {
	client, err := c.connect()
	if err != nil {
		return 0, "", "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return 0, "", "", fmt.Errorf("failed to start remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	err, timedOut := awaitSession(done, timeout)
	if timedOut {
		// best effort, the session is torn down by the deferred Close
		_ = session.Signal(ssh.SIGKILL)
		return 0, "", "", fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), stdout.String(), stderr.String(), nil
		}
		return 0, "", "", fmt.Errorf("remote command failed: %w", err)
	}
	return 0, stdout.String(), stderr.String(), nil
}

// awaitSession waits for the session result on done or for the timeout to
// expire, whichever comes first
func awaitSession(done <-chan error, timeout time.Duration) (err error, timedOut bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err, false
	case <-timer.C:
		return nil, true
	}
}

// clientConfig builds an SSH client config with private key authentication
func clientConfig(user, keyPath string) (*ssh.ClientConfig, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key file %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH private key %s: %w", keyPath, err)
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}, nil
}
