// Package shell implements the `shell` rule action: a command line whose
// placeholders are filled from the job and which runs through the user's
// shell.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/rule"
	"github.com/vk/gridmake/internal/wildcard"
)

// Options configures how commands are run.
type Options struct {
	// Shell overrides the interpreter. Defaults to $SHELL, then sh.
	Shell  string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) shell() string {
	if o.Shell != "" {
		return o.Shell
	}
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "sh"
}

// Action returns an action running command for jobs of r. The command may use
// {input}, {output}, {rule}, {wildcards.NAME} and {NAME}; an unknown
// placeholder fails the job with a *wildcard.MissingKeyError.
func Action(r *rule.Rule, command string, opts Options) rule.Action {
	return func(ctx context.Context, input, output []string, wc wildcard.Binding) error {
		req := rule.Request{Input: input, Output: output, Wildcards: wc}
		line, err := wildcard.Format(command, r.Placeholders(req))
		if err != nil {
			return fmt.Errorf("formatting shell command of rule %s: %w", r.Name(), err)
		}

		sh := opts.shell()
		ctxlog.FromContext(ctx).Debug("Running shell command.", "shell", sh, "command", line)

		cmd := exec.CommandContext(ctx, sh, "-c", line)
		cmd.Dir = opts.Dir
		cmd.Stdout = opts.Stdout
		if cmd.Stdout == nil {
			cmd.Stdout = os.Stdout
		}
		cmd.Stderr = opts.Stderr
		if cmd.Stderr == nil {
			cmd.Stderr = os.Stderr
		}
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("command %q: %w", line, err)
		}
		return nil
	}
}
