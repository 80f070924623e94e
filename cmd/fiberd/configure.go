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

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// defaultConfigYAML backs `fiberd configure` and rconfig's fallback source
// when no config file is found on disk, a single-worker, single-listener
// domain a first-time user can edit from.
func defaultConfigYAML() io.Reader {
	return strings.NewReader(`domain:
  name: edge
  workers: 1
servers:
  - name: http
    network: tcp
    address: 0.0.0.0:8080
    socket:
      keep_alive: true
      no_delay: true
    accept_limiter: 0
`)
}

func newConfigureCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "configure [file]",
		Example: "configure $HOME/fibercore.yaml",
		Short:   "Write a starter domain/server configuration file",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "fibercore.yaml"
			if len(args) == 1 {
				path = args[0]
			} else if flagConfigFile != "" {
				path = flagConfigFile
			}
			return writeConfig(path)
		},
	}
}

func writeConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating config file %q: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, defaultConfigYAML()); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
