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

package metrics

import (
	"context"
	"fmt"
	"sync"

	prmsdk "github.com/prometheus/client_golang/prometheus"
)

// Pool keeps the named set of metrics a single process exposes, so a
// component (a worker domain, a listener) can hand its metrics to one place
// and a scrape loop can Walk them all without knowing each one by name.
type Pool interface {
	Add(m Metric) error
	Get(name string) Metric
	List() []string
	Del(name string)
	Walk(fn func(p Pool, key string, val Metric) bool)
	CollectAll(ctx context.Context)
}

// NewPool creates a Pool that registers every Metric it receives against
// reg, unregistering it again on Del.
func NewPool(reg prmsdk.Registerer) Pool {
	return &pool{reg: reg, items: make(map[string]Metric)}
}

type pool struct {
	mu    sync.RWMutex
	reg   prmsdk.Registerer
	items map[string]Metric
}

func (p *pool) Add(m Metric) error {
	if m == nil {
		return fmt.Errorf("pool: add: given metric is empty")
	}

	vec, err := m.GetType().Register(m)
	if err != nil {
		return err
	}
	if err = m.Register(p.reg, vec); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[m.GetName()] = m
	return nil
}

func (p *pool) Get(name string) Metric {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.items[name]
}

func (p *pool) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.items))
	for k := range p.items {
		out = append(out, k)
	}
	return out
}

func (p *pool) Del(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.items[name]; ok {
		_ = m.UnRegister(p.reg)
		delete(p.items, name)
	}
}

func (p *pool) Walk(fn func(p Pool, key string, val Metric) bool) {
	p.mu.RLock()
	snapshot := make(map[string]Metric, len(p.items))
	for k, v := range p.items {
		snapshot[k] = v
	}
	p.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(p, k, v) {
			return
		}
	}
}

// CollectAll invokes every metric's CollectFunc, the pattern a scrape loop
// uses to pull fresh values out of live runtime state right before a
// /metrics request is served.
func (p *pool) CollectAll(ctx context.Context) {
	p.Walk(func(_ Pool, _ string, m Metric) bool {
		m.Collect(ctx)
		return true
	})
}
