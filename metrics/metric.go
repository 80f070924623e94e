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
	"errors"
	"fmt"
	"sync"

	prmsdk "github.com/prometheus/client_golang/prometheus"
)

// CollectFunc lets a Metric pull its own value from live runtime state right
// before a scrape, instead of every caller remembering to push updates --
// Collect invokes it, passing the Metric itself back so the closure can
// reach the same Inc/Add/Observe/SetGaugeValue methods a caller would.
type CollectFunc func(ctx context.Context, m Metric)

// Metric is one named, typed, labeled time series a runtime component can
// register against a Prometheus registerer and update as it runs.
type Metric interface {
	Describable

	SetDesc(desc string) Metric
	AddLabel(lbl ...string) Metric
	AddBuckets(b ...float64) Metric
	AddObjective(quantile, errTolerance float64) Metric

	Register(reg prmsdk.Registerer, collector prmsdk.Collector) error
	UnRegister(reg prmsdk.Registerer) error

	SetCollect(fn CollectFunc)
	GetCollect() CollectFunc
	Collect(ctx context.Context)

	Inc(labelValues []string) error
	Add(labelValues []string, val float64) error
	Observe(labelValues []string, val float64) error
	SetGaugeValue(labelValues []string, val float64) error
}

// NewMetrics builds an unregistered Metric of the given name and type; the
// caller still has to Register it against a registerer before Inc/Add/
// Observe/SetGaugeValue can reach a live collector.
func NewMetrics(name string, t MetricType) Metric {
	return &metric{name: name, kind: t}
}

type metric struct {
	mu sync.RWMutex

	name string
	kind MetricType
	desc string

	label      []string
	buckets    []float64
	objectives map[float64]float64

	reg     prmsdk.Registerer
	vec     prmsdk.Collector
	collect CollectFunc
}

func (m *metric) GetName() string                    { m.mu.RLock(); defer m.mu.RUnlock(); return m.name }
func (m *metric) GetType() MetricType                { m.mu.RLock(); defer m.mu.RUnlock(); return m.kind }
func (m *metric) GetDesc() string                    { m.mu.RLock(); defer m.mu.RUnlock(); return m.desc }
func (m *metric) GetLabel() []string                 { m.mu.RLock(); defer m.mu.RUnlock(); return m.label }
func (m *metric) GetBuckets() []float64              { m.mu.RLock(); defer m.mu.RUnlock(); return m.buckets }
func (m *metric) GetObjectives() map[float64]float64 { m.mu.RLock(); defer m.mu.RUnlock(); return m.objectives }

func (m *metric) SetDesc(desc string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.desc = desc
	return m
}

func (m *metric) AddLabel(lbl ...string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = append(m.label, lbl...)
	return m
}

func (m *metric) AddBuckets(b ...float64) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = append(m.buckets, b...)
	return m
}

func (m *metric) AddObjective(quantile, errTolerance float64) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objectives == nil {
		m.objectives = make(map[float64]float64)
	}
	m.objectives[quantile] = errTolerance
	return m
}

// Register associates this metric with collector and registers it against
// reg. Re-registering the same metric unregisters the previous collector
// first, so a caller can swap registries without a stale entry lingering.
func (m *metric) Register(reg prmsdk.Registerer, collector prmsdk.Collector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reg == nil {
		return fmt.Errorf("metric %q: register: given registerer is empty", m.name)
	}
	if collector == nil {
		return fmt.Errorf("metric %q: register: given collector is empty", m.name)
	}

	if m.reg != nil && m.vec != nil {
		m.reg.Unregister(m.vec)
	}

	if err := reg.Register(collector); err != nil {
		var are prmsdk.AlreadyRegisteredError
		if ok := errors.As(err, &are); ok {
			collector = are.ExistingCollector
		} else {
			return err
		}
	}

	m.reg = reg
	m.vec = collector
	return nil
}

func (m *metric) UnRegister(reg prmsdk.Registerer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reg == nil {
		return fmt.Errorf("metric %q: unregister: given registerer is empty", m.name)
	}
	if m.vec == nil {
		return fmt.Errorf("metric %q: unregister: metric is not registered", m.name)
	}

	if !reg.Unregister(m.vec) {
		return fmt.Errorf("metric %q: unregister: collector was not found in the given registerer", m.name)
	}
	m.reg = nil
	m.vec = nil
	return nil
}

func (m *metric) SetCollect(fn CollectFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collect = fn
}

func (m *metric) GetCollect() CollectFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect
}

func (m *metric) Collect(ctx context.Context) {
	m.mu.RLock()
	fn := m.collect
	m.mu.RUnlock()
	if fn != nil {
		fn(ctx, m)
	}
}

func (m *metric) vecCollector() prmsdk.Collector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vec
}

func (m *metric) Inc(labelValues []string) error {
	return m.Add(labelValues, 1)
}

func (m *metric) Add(labelValues []string, val float64) error {
	switch v := m.vecCollector().(type) {
	case *prmsdk.CounterVec:
		c, err := v.GetMetricWithLabelValues(labelValues...)
		if err != nil {
			return err
		}
		c.Add(val)
		return nil
	case *prmsdk.GaugeVec:
		g, err := v.GetMetricWithLabelValues(labelValues...)
		if err != nil {
			return err
		}
		g.Add(val)
		return nil
	}
	return fmt.Errorf("metric %q: add: not registered as a counter or gauge", m.GetName())
}

func (m *metric) SetGaugeValue(labelValues []string, val float64) error {
	v, ok := m.vecCollector().(*prmsdk.GaugeVec)
	if !ok {
		return fmt.Errorf("metric %q: set: not registered as a gauge", m.GetName())
	}
	g, err := v.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return err
	}
	g.Set(val)
	return nil
}

func (m *metric) Observe(labelValues []string, val float64) error {
	switch v := m.vecCollector().(type) {
	case *prmsdk.HistogramVec:
		o, err := v.GetMetricWithLabelValues(labelValues...)
		if err != nil {
			return err
		}
		o.Observe(val)
		return nil
	case *prmsdk.SummaryVec:
		o, err := v.GetMetricWithLabelValues(labelValues...)
		if err != nil {
			return err
		}
		o.Observe(val)
		return nil
	}
	return fmt.Errorf("metric %q: observe: not registered as a histogram or summary", m.GetName())
}
