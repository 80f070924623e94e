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
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// daemonizeEnv marks a re-exec'd child so it runs start's body in place
// rather than forking again.
const daemonizeEnv = "FIBERD_DAEMON_CHILD=1"

// daemonize detaches the process from its controlling terminal: it
// re-execs itself with stdio redirected to /dev/null and a fresh session
// (via Setsid), then exits the parent once the child is launched. The
// re-exec'd child sees daemonizeEnv already set and skips this step.
func daemonize() error {
	if os.Getenv("FIBERD_DAEMON_CHILD") == "1" {
		return nil
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("daemonize: opening %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemonize: resolving executable path: %w", err)
	}

	cmd := exec.Command(exe, filteredArgs()...)
	cmd.Env = append(os.Environ(), daemonizeEnv)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("daemonize: starting background process: %w", err)
	}

	fmt.Printf("fiberd: daemonized as pid %d\n", cmd.Process.Pid)
	os.Exit(0)
	return nil
}

// filteredArgs drops the --daemonize/-d flag from os.Args before re-exec,
// so the child doesn't try to daemonize itself again (daemonizeEnv already
// short-circuits that, but keeping the flag out of the child's own
// os.Args keeps `ps` output honest about what the child was actually
// told to do).
func filteredArgs() []string {
	out := make([]string, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		if a == "--daemonize" || a == "-d" || strings.HasPrefix(a, "--daemonize=") {
			continue
		}
		out = append(out, a)
	}
	return out
}
