/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command fiberd boots a fibercore domain from a YAML/env configuration:
// one worker per configured core, one listener per configured server,
// wired the way a production embedding of this module would wire them.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
)

var (
	flagConfigFile string
	flagVerbose    bool
	flagDaemonize  bool

	version = "dev"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fiberd",
		Short:         "A per-core fiber-scheduled edge network service runtime",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "", "path to the domain/server config file (default: $HOME/fibercore.yaml)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")
	root.PersistentFlags().BoolVarP(&flagDaemonize, "daemonize", "d", false, "detach from the controlling terminal and run in the background")

	root.AddCommand(newStartCommand())
	root.AddCommand(newConfigureCommand())
	root.AddCommand(newCompletionCommand())
	root.AddCommand(newErrorCodesCommand())

	return root
}

// Execute runs the command tree, printing any returned error in red to
// stderr through a colorable writer so Windows consoles render it too.
func Execute() int {
	out := colorable.NewColorableStderr()
	root := newRootCommand()

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(out, color.New(color.FgRed).Sprintf("fiberd: %v", err))
		return 1
	}
	return 0
}

func init() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}
