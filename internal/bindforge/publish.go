package bindforge

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
)

// handlePublishCommand uploads local bundles the mirror does not have yet and
// rewrites the remote index. Only bundles with a readable metadata sidecar
// are considered; anything else is skipped with a debug note.
func handlePublishCommand(ctx context.Context, cfg *Config) error {
	mirror, err := NewMirrorClient(cfg)
	if err != nil {
		return err
	}

	arrowf(colSuccess, "Fetching remote bundle index\n")
	remoteIndex, err := mirror.FetchIndex(ctx)
	if err != nil {
		return err
	}

	indexByDigest := make(map[string]BundleMetadata, len(remoteIndex))
	for _, entry := range remoteIndex {
		indexByDigest[entry.Digest] = entry
	}

	arrowf(colSuccess, "Scanning local bundles in %s\n", cfg.OutRoot)
	localFiles, err := filepath.Glob(filepath.Join(cfg.OutRoot, "*.tar.zst"))
	if err != nil {
		return err
	}
	sort.Strings(localFiles)

	var uploaded int
	newIndex := remoteIndex
	for _, file := range localFiles {
		meta, err := ReadBundleMetadata(file)
		if err != nil {
			debugf("Warning: skipping %s: %v\n", file, err)
			continue
		}
		if _, ok := indexByDigest[meta.Digest]; ok {
			debugf("Already on mirror: %s\n", filepath.Base(file))
			continue
		}

		key := "bundles/" + filepath.Base(file)
		arrowf(colSuccess, "Uploading %s\n", filepath.Base(file))
		if err := mirror.UploadLocalFile(ctx, key, file); err != nil {
			return fmt.Errorf("failed to upload %s: %w", file, err)
		}
		if err := mirror.UploadLocalFile(ctx, "bundles/"+filepath.Base(metadataPath(file)), metadataPath(file)); err != nil {
			return fmt.Errorf("failed to upload metadata for %s: %w", file, err)
		}

		newIndex = append(newIndex, meta)
		indexByDigest[meta.Digest] = meta
		uploaded++
	}

	if uploaded == 0 {
		arrowf(colSuccess, "Mirror is up to date\n")
		return nil
	}

	sort.Slice(newIndex, func(i, j int) bool {
		if newIndex[i].Name != newIndex[j].Name {
			return newIndex[i].Name < newIndex[j].Name
		}
		return newIndex[i].CreatedAt.Before(newIndex[j].CreatedAt)
	})
	if err := mirror.PushIndex(ctx, newIndex); err != nil {
		return fmt.Errorf("failed to update remote index: %w", err)
	}

	arrowf(colSuccess, "Published %d bundle(s)\n", uploaded)
	return nil
}
