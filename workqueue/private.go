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

package workqueue

// Private is a plain FIFO touched only by its owning worker goroutine: no
// synchronization is needed, unlike Shared.
type Private struct {
	items []*Item
}

// NewPrivate returns an empty private queue.
func NewPrivate() *Private { return &Private{} }

// Push appends an item submitted by this worker to itself.
func (p *Private) Push(it *Item) { p.items = append(p.items, it) }

// Pop removes and returns the oldest item, or false if empty.
func (p *Private) Pop() (*Item, bool) {
	if len(p.items) == 0 {
		return nil, false
	}
	it := p.items[0]
	p.items[0] = nil
	p.items = p.items[1:]
	return it, true
}

// Len reports how many items are queued.
func (p *Private) Len() int { return len(p.items) }
