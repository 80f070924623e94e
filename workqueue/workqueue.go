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

// Package workqueue carries (routine, arg) work items between workers. Each
// worker owns a Shared queue (many producers, one consumer: this worker)
// and a Private queue (touched only by this worker, no synchronization at
// all). Cross-worker submission always targets a Shared queue; local
// self-submission always targets a Private queue.
package workqueue

// Tag selects how the owning worker's main loop handles an Item.
type Tag int

const (
	// TagRun invokes Routine(Arg) inline on the boot fiber.
	TagRun Tag = iota
	// TagSpawn creates and runs a fiber with Routine as its entry.
	TagSpawn
	// TagJoin signals completion of a previously submitted item.
	TagJoin
)

// Item is the unit of cross- or intra-worker work.
type Item struct {
	Tag     Tag
	Routine func(arg any)
	Arg     any
}
