package log

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	// capture standard error, where all log output goes
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	// reset verbose and level settings
	verbose = false
	quiet = false
	level = INFO

	// test different levels of logs
	Info("This is an info")
	Infof("This is an info with %s", "format")
	Warning("This is a warning")
	Warningf("This is a warning with %s", "format")
	Debug("This should not be printed")
	Debugf("This should not be printed with %s", "format")
	Error("This is an error")
	Errorf("This is an error with %s", "format")

	// switch to verbose mode
	SetVerbose(true)
	if !IsVerbose() {
		t.Error("IsVerbose should return true after SetVerbose(true)")
	}
	if GetLevel() != DEBUG {
		t.Errorf("Level should be DEBUG when verbose is true, got %v", GetLevel())
	}

	// test Debug log should be visible in verbose mode
	Debug("This should be printed in verbose mode")
	Debugf("This should be printed in verbose mode with %s", "format")

	// restore standard error and get output content
	w.Close()
	os.Stderr = oldStderr
	var buf bytes.Buffer
	io.Copy(&buf, r)
	output := buf.String()

	// check log output
	t.Run("Info logs are printed", func(t *testing.T) {
		if !strings.Contains(output, "This is an info") {
			t.Error("Info log should be printed")
		}
		if !strings.Contains(output, "This is an info with format") {
			t.Error("Formatted info log should be printed")
		}
	})

	t.Run("Warning logs are printed", func(t *testing.T) {
		if !strings.Contains(output, "This is a warning") {
			t.Error("Warning log should be printed")
		}
		if !strings.Contains(output, "This is a warning with format") {
			t.Error("Formatted warning log should be printed")
		}
	})

	t.Run("Debug logs are not printed without verbose", func(t *testing.T) {
		if strings.Contains(output, "This should not be printed") {
			t.Error("Debug log should not be printed when verbose is false")
		}
	})

	t.Run("Error logs are printed", func(t *testing.T) {
		if !strings.Contains(output, "This is an error") {
			t.Error("Error log should be printed")
		}
	})

	t.Run("Debug logs are printed with verbose", func(t *testing.T) {
		if !strings.Contains(output, "This should be printed in verbose mode") {
			t.Error("Debug log should be printed when verbose is true")
		}
	})
}

func TestLogLevel(t *testing.T) {
	// test log level settings
	SetLevel(ERROR)
	if GetLevel() != ERROR {
		t.Errorf("Level should be ERROR, got %v", GetLevel())
	}

	// test verbose overrides log level settings
	SetVerbose(true)
	if GetLevel() != DEBUG {
		t.Errorf("Level should be DEBUG when verbose is true, got %v", GetLevel())
	}

	// test manual level settings can override verbose settings
	SetLevel(ERROR)
	if GetLevel() != ERROR {
		t.Errorf("Level should be ERROR, got %v", GetLevel())
	}
}

// TestStdoutStaysClean guards the stdio MCP transport: stdout carries the
// JSON-RPC stream, so no log output may ever land there
func TestStdoutStaysClean(t *testing.T) {
	oldStdout := os.Stdout
	ro, wo, _ := os.Pipe()
	os.Stdout = wo

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	verbose = false
	quiet = false
	level = INFO

	Info("Serving MCP over stdio")
	Warningf("mapping %s not loaded", "Rule_Hash_Mapping.csv")
	Error("download failed")

	wo.Close()
	w.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var outBuf, errBuf bytes.Buffer
	io.Copy(&outBuf, ro)
	io.Copy(&errBuf, r)

	if outBuf.Len() != 0 {
		t.Errorf("Log output must not reach stdout, got %q", outBuf.String())
	}
	if !strings.Contains(errBuf.String(), "Serving MCP over stdio") {
		t.Error("Log output should reach stderr")
	}
}

func TestNoColorWhenDisabled(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	oldColor := colorEnabled
	EnableColor(false)
	level = INFO
	Info("plain message")
	EnableColor(oldColor)

	w.Close()
	os.Stderr = oldStderr
	var buf bytes.Buffer
	io.Copy(&buf, r)

	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("Output should carry no ANSI escapes when color is disabled, got %q", buf.String())
	}
}

func TestQuietMode(t *testing.T) {
	// capture standard error
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	verbose = false
	level = INFO

	SetQuiet(true)
	if !IsQuiet() {
		t.Error("IsQuiet should return true after SetQuiet(true)")
	}
	if GetLevel() != ERROR {
		t.Errorf("Level should be ERROR when quiet is true, got %v", GetLevel())
	}

	Info("quiet info should not be printed")
	Error("quiet error should be printed")

	w.Close()
	os.Stderr = oldStderr
	var buf bytes.Buffer
	io.Copy(&buf, r)
	output := buf.String()

	if strings.Contains(output, "quiet info should not be printed") {
		t.Error("Info log should not be printed in quiet mode")
	}
	if !strings.Contains(output, "quiet error should be printed") {
		t.Error("Error log should be printed in quiet mode")
	}

	// reset for other tests
	SetQuiet(false)
	SetLevel(INFO)
}

// TestFatalExit tests that Fatal calls the (mocked) exit function
func TestFatalExit(t *testing.T) {
	// Capture stderr
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	// Mock os.Exit
	oldOsExit := osExit
	exitCode := 0
	osExit = func(code int) {
		exitCode = code
	}
	defer func() {
		osExit = oldOsExit
		os.Stderr = oldStderr
	}()

	level = INFO
	EnableStackTrace(false)
	Fatal("fatal without stack trace")

	w.Close()
	var errBuf bytes.Buffer
	io.Copy(&errBuf, r)

	if exitCode != 1 {
		t.Errorf("Fatal should exit with code 1, got %d", exitCode)
	}
	if !strings.Contains(errBuf.String(), "fatal without stack trace") {
		t.Error("Fatal message should be printed to stderr")
	}
	if !strings.Contains(errBuf.String(), EnvStackTrace) {
		t.Error("Fatal should hint at the stack trace environment variable")
	}
}
