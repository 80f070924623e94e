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

// Package metrics gives the scheduler/dispatcher/worker runtime a place to
// publish Prometheus collectors without every component importing the SDK
// directly: a Metric carries its own name/type/labels/buckets/objectives,
// MetricType.Register turns that description into the matching *Vec
// collector, and Pool keeps the named set a process exposes.
package metrics

import (
	"fmt"

	prmsdk "github.com/prometheus/client_golang/prometheus"
)

// MetricType selects which Prometheus collector shape a Metric registers as.
type MetricType int

const (
	None MetricType = iota
	Counter
	Gauge
	Histogram
	Summary
)

// Describable is the read side of Metric that MetricType.Register needs --
// split out so a caller can hand in any struct shaped this way instead of
// always going through the concrete metric type.
type Describable interface {
	GetName() string
	GetType() MetricType
	GetDesc() string
	GetLabel() []string
	GetBuckets() []float64
	GetObjectives() map[float64]float64
}

// Register builds the Prometheus collector matching m's type and
// description: a CounterVec/GaugeVec for Counter/Gauge, a HistogramVec for
// Histogram (buckets required), a SummaryVec for Summary (objectives
// required). None, or any value outside this enum, is an error.
func (t MetricType) Register(m Describable) (prmsdk.Collector, error) {
	switch t {
	case Counter:
		return prmsdk.NewCounterVec(prmsdk.CounterOpts{
			Name: m.GetName(),
			Help: m.GetDesc(),
		}, m.GetLabel()), nil

	case Gauge:
		return prmsdk.NewGaugeVec(prmsdk.GaugeOpts{
			Name: m.GetName(),
			Help: m.GetDesc(),
		}, m.GetLabel()), nil

	case Histogram:
		if len(m.GetBuckets()) < 1 {
			return nil, fmt.Errorf("metric %q: histogram type requires a non-empty bucket param", m.GetName())
		}
		return prmsdk.NewHistogramVec(prmsdk.HistogramOpts{
			Name:    m.GetName(),
			Help:    m.GetDesc(),
			Buckets: m.GetBuckets(),
		}, m.GetLabel()), nil

	case Summary:
		if len(m.GetObjectives()) < 1 {
			return nil, fmt.Errorf("metric %q: summary type requires a non-empty objectives param", m.GetName())
		}
		return prmsdk.NewSummaryVec(prmsdk.SummaryOpts{
			Name:       m.GetName(),
			Help:       m.GetDesc(),
			Objectives: m.GetObjectives(),
		}, m.GetLabel()), nil
	}

	return nil, fmt.Errorf("metric %q: type %d is not compatible with any known collector", m.GetName(), t)
}
