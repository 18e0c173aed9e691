package bindforge

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"lukechampine.com/blake3"
)

// check if b3sum is installed on system
func hasB3sum() bool {
	_, err := exec.LookPath("b3sum")
	return err == nil
}

// ComputeChecksum hashes a file, using system b3sum if available.
func ComputeChecksum(path string) (string, error) {
	// 1. Try system b3sum
	if hasB3sum() && !strings.Contains(path, "\\") {
		cmd := exec.Command("b3sum", path)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = io.Discard
		if err := cmd.Run(); err == nil {
			fields := strings.Fields(out.String())
			if len(fields) > 0 {
				return fields[0], nil
			}
		}
		debugf("b3sum failed for %s, falling back to internal BLAKE3\n", path)
	}

	// 2. Fallback: internal Go BLAKE3 (32-byte output, no key)
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
