package bindforge

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind is the normalized classification attached to a failed
// resolution, assembly or build. The binder and the NDK report most problems
// only as diagnostic text, so the raw output always travels with the kind.
type FailureKind int

const (
	KindNone FailureKind = iota
	KindDownloadError
	KindChecksumMismatch
	KindMissingDependency
	KindUnsupportedApiLevel
	KindUnresolvedImport
	KindCgoUnsupported
	KindUnclassified
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindDownloadError:
		return "DownloadError"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindMissingDependency:
		return "MissingDependency"
	case KindUnsupportedApiLevel:
		return "UnsupportedApiLevel"
	case KindUnresolvedImport:
		return "UnresolvedImport"
	case KindCgoUnsupported:
		return "CgoUnsupported"
	default:
		return "Unclassified"
	}
}

var (
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrMissingDependency = errors.New("missing dependency")
)

// DownloadError wraps a transient fetch failure. It records how many attempts
// were made so the caller can tell an exhausted retry loop from a single shot.
type DownloadError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed after %d attempt(s): %s: %v", e.Attempts, e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ChecksumError carries both digests so the mismatch is diagnosable without
// re-hashing anything.
type ChecksumError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Name, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// classifyPatterns maps known binder/NDK diagnostic substrings to kinds.
// First match wins; matching is case-insensitive.
var classifyPatterns = []struct {
	substr string
	kind   FailureKind
}{
	{"unsupported api", KindUnsupportedApiLevel},
	{"-androidapi", KindUnsupportedApiLevel},
	{"android api level", KindUnsupportedApiLevel},
	{"minsdkversion", KindUnsupportedApiLevel},
	{"no required module provides package", KindUnresolvedImport},
	{"cannot find package", KindUnresolvedImport},
	{"cannot find module", KindUnresolvedImport},
	{"could not import", KindUnresolvedImport},
	{"package not found", KindUnresolvedImport},
	{"cgo is disabled", KindCgoUnsupported},
	{"requires cgo", KindCgoUnsupported},
	{"c compiler", KindCgoUnsupported},
	{"cgo_enabled=0", KindCgoUnsupported},
	{"undefined reference", KindCgoUnsupported},
}

// classifyOutput maps captured tool output to the error taxonomy.
// Unrecognized diagnostics land in Unclassified, never in a guessed kind.
func classifyOutput(output string) FailureKind {
	lower := strings.ToLower(output)
	for _, p := range classifyPatterns {
		if strings.Contains(lower, p.substr) {
			return p.kind
		}
	}
	return KindUnclassified
}
