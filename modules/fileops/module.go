// Package fileops provides the built-in file actions: copy, concat, touch and
// write_wildcards.
package fileops

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/registry"
	"github.com/vk/gridmake/internal/wildcard"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Fs afero.Fs
	// Now is used by touch. Defaults to time.Now.
	Now func() time.Time
}

// Register registers the actions with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("copy", m.Copy)
	r.RegisterAction("concat", m.Concat)
	r.RegisterAction("touch", m.Touch)
	r.RegisterAction("write_wildcards", m.WriteWildcards)
}

// Copy writes the contents of all inputs, back to back, into every output.
func (m *Module) Copy(ctx context.Context, input, output []string, _ wildcard.Binding) error {
	return m.join(ctx, input, output, nil)
}

// Concat is Copy with a newline between inputs that do not end in one.
func (m *Module) Concat(ctx context.Context, input, output []string, _ wildcard.Binding) error {
	return m.join(ctx, input, output, []byte("\n"))
}

func (m *Module) join(ctx context.Context, input, output []string, sep []byte) error {
	var buf bytes.Buffer
	for _, in := range input {
		data, err := afero.ReadFile(m.Fs, in)
		if err != nil {
			return fmt.Errorf("reading %s: %w", in, err)
		}
		buf.Write(data)
		if sep != nil && len(data) > 0 && !bytes.HasSuffix(data, sep) {
			buf.Write(sep)
		}
	}
	ctxlog.FromContext(ctx).Debug("Writing joined inputs.", "inputs", len(input), "bytes", buf.Len())
	return m.writeAll(output, buf.Bytes())
}

// Touch creates missing outputs and sets the modification time of all of them
// to now.
func (m *Module) Touch(ctx context.Context, _, output []string, _ wildcard.Binding) error {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ts := now()
	for _, out := range output {
		exists, err := afero.Exists(m.Fs, out)
		if err != nil {
			return err
		}
		if !exists {
			if err := afero.WriteFile(m.Fs, out, nil, 0o644); err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
		}
		if err := m.Fs.Chtimes(out, ts, ts); err != nil {
			return fmt.Errorf("touching %s: %w", out, err)
		}
	}
	return nil
}

// WriteWildcards writes the wildcard values of the job, ordered by name and
// separated by spaces, into every output.
func (m *Module) WriteWildcards(_ context.Context, _, output []string, wc wildcard.Binding) error {
	names := make([]string, 0, len(wc))
	for name := range wc {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = wc[name]
	}
	return m.writeAll(output, []byte(strings.Join(values, " ")))
}

func (m *Module) writeAll(output []string, data []byte) error {
	for _, out := range output {
		if err := afero.WriteFile(m.Fs, out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	}
	return nil
}
