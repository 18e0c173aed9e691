package bindforge

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BundleMetadata is the sidecar written next to every packaged bundle and
// the unit of the mirror index.
type BundleMetadata struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	APILevel  int       `json:"api_level"`
	Archs     []string  `json:"archs"`
	Digest    string    `json:"digest"` // BLAKE3 of the bundle tarball
	CreatedAt time.Time `json:"created_at"`
}

// StandardizeBundleName gives bundles a predictable on-disk and mirror name.
func StandardizeBundleName(name, version string, apiLevel int) string {
	return fmt.Sprintf("%s-%s-android%d.tar.zst", name, version, apiLevel)
}

// CreateBundle packages the bind outputs (the .aar and its companion sources
// archive) into a .tar.zst under OutRoot, hashes it and writes the metadata
// sidecar. Returns the bundle path.
func CreateBundle(cfg *Config, name, version string, archs []string, artifacts []string) (string, error) {
	if len(artifacts) == 0 {
		return "", fmt.Errorf("no artifacts to bundle for %s", name)
	}

	stage, err := os.MkdirTemp(ensureDir(cfg.TmpRoot), "bundle-")
	if err != nil {
		return "", fmt.Errorf("failed to create bundle staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	for _, src := range artifacts {
		if err := copyFile(src, filepath.Join(stage, filepath.Base(src))); err != nil {
			return "", fmt.Errorf("failed to stage %s: %w", src, err)
		}
	}

	bundleName := StandardizeBundleName(name, version, cfg.AndroidAPI)
	bundlePath := filepath.Join(cfg.OutRoot, bundleName)
	if err := createTarZst(stage, bundlePath); err != nil {
		return "", fmt.Errorf("failed to create bundle tarball: %w", err)
	}

	digest, err := ComputeChecksum(bundlePath)
	if err != nil {
		return "", fmt.Errorf("failed to hash bundle: %w", err)
	}

	meta := BundleMetadata{
		Name:      name,
		Version:   version,
		APILevel:  cfg.AndroidAPI,
		Archs:     archs,
		Digest:    digest,
		CreatedAt: time.Now().UTC(),
	}
	if err := writeBundleMetadata(bundlePath, meta); err != nil {
		return "", err
	}

	arrowf(colSuccess, "Bundle created: %s\n", bundlePath)
	return bundlePath, nil
}

func metadataPath(bundlePath string) string {
	return strings.TrimSuffix(bundlePath, ".tar.zst") + ".json"
}

func writeBundleMetadata(bundlePath string, meta BundleMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metadataPath(bundlePath), data, 0o644)
}

// ReadBundleMetadata loads the sidecar for a bundle.
func ReadBundleMetadata(bundlePath string) (BundleMetadata, error) {
	var meta BundleMetadata
	data, err := os.ReadFile(metadataPath(bundlePath))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
