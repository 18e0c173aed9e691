package bindforge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Resolver turns ToolchainSpecs into verified cache entries. The cache layout
// under CacheRoot is:
//
//	dl/<name>-<version>.<ext>      download staging (transient)
//	toolchains/<name>-<version>/   extracted, verified toolchain
//	toolchains/<name>-<version>.b3 archive digest recorded after extraction
//
// The .b3 marker is written last, so a partially extracted entry is never
// mistaken for a valid one.
type Resolver struct {
	cfg    *Config
	mirror *MirrorClient // optional prebuilt-toolchain mirror, may be nil
}

func NewResolver(cfg *Config) *Resolver {
	r := &Resolver{cfg: cfg}
	if mc, err := NewMirrorClient(cfg); err == nil {
		r.mirror = mc
	}
	return r
}

func (r *Resolver) entryDir(spec ToolchainSpec) string {
	return filepath.Join(r.cfg.CacheRoot, "toolchains", spec.CacheKey())
}

// Resolve returns the cached toolchain for spec, downloading and verifying it
// on a miss. Safe for concurrent use: resolution of the same (name, version)
// is serialized by an flock on the cache entry, and the first writer wins.
func (r *Resolver) Resolve(ctx context.Context, spec ToolchainSpec) (*ResolvedToolchain, error) {
	return r.resolve(ctx, spec, false)
}

func (r *Resolver) resolve(ctx context.Context, spec ToolchainSpec, quiet bool) (*ResolvedToolchain, error) {
	dir := r.entryDir(spec)
	markerPath := dir + ".b3"
	lockPath := dir + ".lock"

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create toolchain cache dir: %w", err)
	}

	lFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve lock: %w", err)
	}
	defer lFile.Close()

	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return nil, fmt.Errorf("failed to acquire resolve lock: %w", err)
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// DOUBLE CHECK under the lock: another caller may have populated the
	// entry while we waited.
	if rt, ok := r.cachedEntry(spec, dir, markerPath); ok {
		return rt, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt, err := r.populate(ctx, spec, dir, markerPath, quiet)
	if err != nil {
		return nil, err
	}
	_ = os.Remove(lockPath)
	return rt, nil
}

// cachedEntry revalidates an existing cache entry against the spec's pin.
// A digest marker that no longer matches means either cache corruption or a
// config bump to a new pin; the entry is evicted and resolved fresh.
func (r *Resolver) cachedEntry(spec ToolchainSpec, dir, markerPath string) (*ResolvedToolchain, bool) {
	stored, err := os.ReadFile(markerPath)
	if err != nil {
		return nil, false
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, false
	}
	sum := string(stored)
	if spec.Checksum != "" && sum != spec.Checksum {
		debugf("Cache entry %s digest %s no longer matches pin %s, evicting\n", spec.CacheKey(), sum, spec.Checksum)
		_ = os.RemoveAll(dir)
		_ = os.Remove(markerPath)
		return nil, false
	}
	debugf("Cache hit for %s\n", spec.CacheKey())
	return &ResolvedToolchain{Spec: spec, Dir: dir, Verified: true}, true
}

// populate downloads, verifies and extracts the toolchain. Caller holds the
// entry lock. Verification happens on the archive BEFORE extraction; nothing
// unverified ever becomes visible under toolchains/.
func (r *Resolver) populate(ctx context.Context, spec ToolchainSpec, dir, markerPath string, quiet bool) (*ResolvedToolchain, error) {
	archivePath := filepath.Join(r.cfg.CacheRoot, "dl", spec.archiveName())

	if err := r.fetchArchive(ctx, spec, archivePath, quiet); err != nil {
		return nil, err
	}

	sum, err := ComputeChecksum(archivePath)
	if err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("failed to hash %s: %w", archivePath, err)
	}

	if spec.Checksum != "" {
		if sum != spec.Checksum {
			// A wrong pin is not transient; surface it immediately and keep
			// the cache clean.
			_ = os.Remove(archivePath)
			return nil, &ChecksumError{Name: spec.CacheKey(), Expected: spec.Checksum, Actual: sum}
		}
	} else {
		if r.cfg.StrictPins {
			_ = os.Remove(archivePath)
			return nil, fmt.Errorf("%w: %s (strict mode refuses unpinned downloads)", errNotPinned, spec.CacheKey())
		}
		// Trust on first use: record the digest so later resolutions verify
		// against it.
		arrowf(colWarn, "No pin for %s, recording digest %s\n", spec.CacheKey(), sum)
		if err := recordPin(r.cfg, spec.CacheKey(), sum); err != nil {
			_ = os.Remove(archivePath)
			return nil, fmt.Errorf("failed to record pin for %s: %w", spec.CacheKey(), err)
		}
	}

	// Extract into a sibling temp dir and rename, so a crash mid-extraction
	// leaves no half-populated entry behind.
	tmpDir := dir + ".tmp"
	_ = os.RemoveAll(tmpDir)
	if err := extractArchive(archivePath, tmpDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("failed to extract %s: %w", archivePath, err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.RemoveAll(tmpDir)
		_ = os.Remove(archivePath)
		return nil, err
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to finalize cache entry %s: %w", dir, err)
	}
	if err := os.WriteFile(markerPath, []byte(sum), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write digest marker: %w", err)
	}
	_ = os.Remove(archivePath)

	arrowf(colSuccess, "Resolved %s\n", spec.CacheKey())
	return &ResolvedToolchain{Spec: spec, Dir: dir, Verified: true}, nil
}

// fetchArchive tries the configured artifact mirror first, then the vendor
// URL. Mirror misses are expected and quiet.
func (r *Resolver) fetchArchive(ctx context.Context, spec ToolchainSpec, archivePath string, quiet bool) error {
	if _, err := os.Stat(archivePath); err == nil {
		debugf("Already in staging: %s\n", archivePath)
		return nil
	}

	if r.mirror != nil {
		mirrorMessageOnce.Do(func() {
			arrowf(colSuccess, "Using artifact mirror: %s\n", r.cfg.MirrorURL)
		})
		if err := r.mirror.FetchToolchain(ctx, spec.archiveName(), archivePath); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else {
			debugf("Mirror miss for %s: %v\n", spec.archiveName(), err)
		}
	}

	arrowf(colSuccess, "Fetching toolchain: %s\n", spec.CacheKey())
	return downloadFileWithOptions(ctx, spec.URL(), archivePath, downloadOptions{Quiet: quiet})
}

// Prefetch resolves several specs concurrently, bounded by a semaphore.
// The first error wins; remaining downloads still run to completion so the
// cache stays consistent.
func (r *Resolver) Prefetch(ctx context.Context, specs []ToolchainSpec) error {
	if len(specs) == 0 {
		return nil
	}

	concurrencyLimit := 4
	debugf("Prefetching %d toolchains (concurrency: %d)...\n", len(specs), concurrencyLimit)

	sem := make(chan struct{}, concurrencyLimit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, spec := range specs {
		sem <- struct{}{}
		wg.Add(1)

		go func(s ToolchainSpec) {
			defer wg.Done()
			defer func() { <-sem }()

			// Quiet: parallel progress bars would garble the terminal.
			if _, err := r.resolve(ctx, s, true); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("prefetch %s: %w", s.CacheKey(), err)
				}
				mu.Unlock()
			}
		}(spec)
	}

	wg.Wait()
	return firstErr
}

// Evict removes a cache entry. Explicit eviction is the only way an entry is
// ever destroyed.
func (r *Resolver) Evict(spec ToolchainSpec) error {
	dir := r.entryDir(spec)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.Remove(dir + ".b3"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
