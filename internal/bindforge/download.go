package bindforge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Retry policy for transient fetch failures. Checksum mismatches never go
// through this path; they indicate a wrong pin, not a flaky network.
var (
	maxDownloadAttempts = 4
	retryBaseDelay      = 2 * time.Second
)

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	// Default handshake timeout is 10s; dl.google.com is fine but slower
	// vendor mirrors are not.
	transport.TLSHandshakeTimeout = 30 * time.Second

	return &http.Client{
		Transport: transport,
		Timeout:   300 * time.Second, // 5 min total timeout for large downloads
	}
}

// statusError is a non-2xx response. Only 5xx counts as transient.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "download failed with status: " + e.status }

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// url.Error wraps dial/reset failures that don't implement net.Error
	return errors.Is(err, io.ErrUnexpectedEOF)
}

type downloadOptions struct {
	Quiet bool // Quiet suppresses all stdout/stderr/progress output
}

// downloadFileWithOptions fetches url into destFile under an exclusive
// flock, retrying transient failures with exponential backoff. The payload
// goes to a .part file first and is renamed into place only when complete,
// so a crash or a cancellation never leaves a partial download where other
// callers look.
func downloadFileWithOptions(ctx context.Context, url, destFile string, opt downloadOptions) error {
	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", destFile, err)
	}
	lockPath := destFile + ".lock"

	// Create/Open a lock file to prevent races between concurrent resolvers
	// of the same key.
	lFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer lFile.Close()

	// Acquire an exclusive lock. This blocks while another goroutine or
	// process is downloading the same file.
	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock for download: %w", err)
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// DOUBLE CHECK: the file may have appeared while we waited for the lock.
	if _, err := os.Stat(destFile); err == nil {
		debugf("File %s appeared after acquiring lock, skipping download.\n", destFile)
		_ = os.Remove(lockPath)
		return nil
	}

	partPath := destFile + ".part"
	client := newHTTPClient()

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxDownloadAttempts; attempt++ {
		if attempt > 1 {
			delay := retryBaseDelay << (attempt - 2)
			debugf("Retrying %s in %v (attempt %d/%d)\n", url, delay, attempt, maxDownloadAttempts)
			select {
			case <-ctx.Done():
				_ = os.Remove(partPath)
				_ = os.Remove(lockPath)
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		attempts = attempt
		lastErr = fetchOnce(ctx, client, url, partPath, opt)
		if lastErr == nil {
			if err := os.Rename(partPath, destFile); err != nil {
				return fmt.Errorf("failed to finalize download %s: %w", destFile, err)
			}
			_ = os.Remove(lockPath)
			return nil
		}
		_ = os.Remove(partPath)

		if ctx.Err() != nil {
			// Cancellation is reported as such, not as a generic failure.
			_ = os.Remove(lockPath)
			return ctx.Err()
		}
		if !isTransient(lastErr) {
			break
		}
	}

	_ = os.Remove(lockPath)
	return &DownloadError{URL: url, Attempts: attempts, Err: lastErr}
}

func fetchOnce(ctx context.Context, client *http.Client, url, partPath string, opt downloadOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", partPath, err)
	}
	defer out.Close()

	var dst io.Writer = out
	if !opt.Quiet && term.IsTerminal(int(os.Stdout.Fd())) {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(url))
		defer bar.Close()
		dst = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("failed to write to destination file: %w", err)
	}
	return nil
}
