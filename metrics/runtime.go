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
	"strconv"
	"time"

	prmsdk "github.com/prometheus/client_golang/prometheus"
)

// Runtime is the fixed set of collectors a worker's main loop updates every
// Tick: how long one dispatcher poll took, how deep its run queue sat right
// after that poll, how many sinks it has registered, and how many items
// arrived from another worker. Every metric is labeled by worker id so a
// multi-worker domain's collectors stay per-thread instead of averaging
// across the fleet.
type Runtime struct {
	pool Pool

	pollDuration  Metric
	runQueueDepth Metric
	activeSinks   Metric
	crossSubmits  Metric
}

// NewRuntime builds and registers the four collectors against reg. Passing
// the same reg to a second Runtime succeeds: Metric.Register adopts the
// collector already registered under each name, so both Runtimes update the
// same series, told apart only by their worker label. A collector of a
// different shape already registered under one of these names makes
// NewRuntime fail.
func NewRuntime(reg prmsdk.Registerer) (*Runtime, error) {
	r := &Runtime{pool: NewPool(reg)}

	r.pollDuration = NewMetrics("fibercore_poll_duration_seconds", Histogram).
		SetDesc("Time spent in one dispatcher Poll call.").
		AddLabel("worker").
		AddBuckets(.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25)
	if err := r.pool.Add(r.pollDuration); err != nil {
		return nil, err
	}

	r.runQueueDepth = NewMetrics("fibercore_run_queue_depth", Gauge).
		SetDesc("Number of fibers runnable but not yet running, sampled after each Poll.").
		AddLabel("worker")
	if err := r.pool.Add(r.runQueueDepth); err != nil {
		return nil, err
	}

	r.activeSinks = NewMetrics("fibercore_active_sinks", Gauge).
		SetDesc("Number of dispatcher sinks currently registered.").
		AddLabel("worker")
	if err := r.pool.Add(r.activeSinks); err != nil {
		return nil, err
	}

	r.crossSubmits = NewMetrics("fibercore_cross_worker_submits_total", Counter).
		SetDesc("Cross-worker workqueue.Submit calls, by source and destination worker.").
		AddLabel("from_worker", "to_worker")
	if err := r.pool.Add(r.crossSubmits); err != nil {
		return nil, err
	}

	return r, nil
}

// Pool exposes the underlying collector set, e.g. for a caller that wants to
// Walk it into its own diagnostics endpoint alongside other pools.
func (r *Runtime) Pool() Pool { return r.pool }

func workerLabel(id uint64) string { return strconv.FormatUint(id, 10) }

// ObservePoll records one dispatcher.Poll call's wall-clock duration.
func (r *Runtime) ObservePoll(workerID uint64, d time.Duration) {
	_ = r.pollDuration.Observe([]string{workerLabel(workerID)}, d.Seconds())
}

// SetRunQueueDepth publishes how many fibers sat in the run queue right
// after the poll that preceded them running.
func (r *Runtime) SetRunQueueDepth(workerID uint64, n int) {
	_ = r.runQueueDepth.SetGaugeValue([]string{workerLabel(workerID)}, float64(n))
}

// SetActiveSinks publishes the dispatcher's current registered-sink count.
func (r *Runtime) SetActiveSinks(workerID uint64, n int) {
	_ = r.activeSinks.SetGaugeValue([]string{workerLabel(workerID)}, float64(n))
}

// IncCrossWorkerSubmit counts one workqueue.Submit call that crossed from
// one worker to another (self-submissions are not counted -- they never
// touch the shared queue or the self-pipe).
func (r *Runtime) IncCrossWorkerSubmit(fromWorkerID, toWorkerID uint64) {
	_ = r.crossSubmits.Inc([]string{workerLabel(fromWorkerID), workerLabel(toWorkerID)})
}
