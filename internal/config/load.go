package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/fsutil"
)

// LoadAll discovers rule files under paths and loads each with the loader
// registered for its extension. Files of a directory are read in lexical
// order; rules keep their order within a file.
func LoadAll(ctx context.Context, fs afero.Fs, loaders map[string]Loader, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	model := &Model{}
	seen := make(map[string]struct{})
	for _, path := range paths {
		files, err := fsutil.FindFilesByExtension(fs, path, exts...)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve rule path '%s': %w", path, err)
		}
		if len(files) == 0 {
			logger.Warn("No rule files found at the specified path.", "path", path)
		}
		for _, file := range files {
			if _, dup := seen[file]; dup {
				continue
			}
			seen[file] = struct{}{}

			logger.Debug("Loading rule file.", "file", file)
			m, err := loaders[filepath.Ext(file)].LoadFile(ctx, file)
			if err != nil {
				return nil, err
			}
			model.Merge(m)
		}
	}

	logger.Debug("Finished loading rule files.", "files", len(seen), "rules", len(model.Rules))
	return model, nil
}
