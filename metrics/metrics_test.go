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

package metrics_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	prmsdk "github.com/prometheus/client_golang/prometheus"

	libmet "github.com/sabouaram/fibercore/metrics"
)

var _ = Describe("MetricType", func() {
	It("registers a Counter as a CounterVec", func() {
		m := libmet.NewMetrics("t_counter", libmet.Counter)
		c, err := m.GetType().Register(m)
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(BeAssignableToTypeOf(&prmsdk.CounterVec{}))
	})

	It("registers a Gauge as a GaugeVec", func() {
		m := libmet.NewMetrics("t_gauge", libmet.Gauge)
		c, err := m.GetType().Register(m)
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(BeAssignableToTypeOf(&prmsdk.GaugeVec{}))
	})

	It("requires buckets for a Histogram", func() {
		m := libmet.NewMetrics("t_hist", libmet.Histogram)
		_, err := m.GetType().Register(m)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("histogram type"))
		Expect(err.Error()).To(ContainSubstring("bucket param"))

		m.AddBuckets(0.1, 0.5, 1)
		c, err := m.GetType().Register(m)
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(BeAssignableToTypeOf(&prmsdk.HistogramVec{}))
	})

	It("requires objectives for a Summary", func() {
		m := libmet.NewMetrics("t_summary", libmet.Summary)
		_, err := m.GetType().Register(m)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("summary type"))
		Expect(err.Error()).To(ContainSubstring("objectives param"))

		m.AddObjective(0.5, 0.05)
		c, err := m.GetType().Register(m)
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(BeAssignableToTypeOf(&prmsdk.SummaryVec{}))
	})

	It("rejects None and any unknown type", func() {
		m := libmet.NewMetrics("t_none", libmet.None)
		_, err := m.GetType().Register(m)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("not compatible"))
	})
})

var _ = Describe("Metric", func() {
	It("updates a registered Counter and rejects the wrong call shape", func() {
		m := libmet.NewMetrics("t_counter_val", libmet.Counter).AddLabel("method")
		vec, err := m.GetType().Register(m)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Register(prmsdk.NewRegistry(), vec)).To(Succeed())

		Expect(m.Inc([]string{"GET"})).To(Succeed())
		Expect(m.Add([]string{"GET"}, 4)).To(Succeed())
		Expect(m.Observe([]string{"GET"}, 1.0)).To(HaveOccurred())
	})

	It("updates a registered Gauge including Set/Inc/Add", func() {
		m := libmet.NewMetrics("t_gauge_val", libmet.Gauge).AddLabel("queue")
		vec, err := m.GetType().Register(m)
		Expect(err).ToNot(HaveOccurred())
		reg := prmsdk.NewRegistry()
		Expect(m.Register(reg, vec)).To(Succeed())

		Expect(m.SetGaugeValue([]string{"jobs"}, 42)).To(Succeed())
		Expect(m.Inc([]string{"jobs"})).To(Succeed())
		Expect(m.Add([]string{"jobs"}, -3)).To(Succeed())
	})

	It("allows re-registering the same metric against the same registerer", func() {
		m := libmet.NewMetrics("t_reregister", libmet.Counter)
		reg := prmsdk.NewRegistry()
		vec, err := m.GetType().Register(m)
		Expect(err).ToNot(HaveOccurred())

		Expect(m.Register(reg, vec)).To(Succeed())
		Expect(m.Register(reg, vec)).To(Succeed())
	})

	It("fails UnRegister when nothing has been registered yet", func() {
		m := libmet.NewMetrics("t_unregister_empty", libmet.Counter)
		Expect(m.UnRegister(prmsdk.NewRegistry())).To(HaveOccurred())
	})

	It("runs the attached CollectFunc when Collect is invoked", func() {
		m := libmet.NewMetrics("t_collect", libmet.Gauge).AddLabel("k")
		vec, err := m.GetType().Register(m)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Register(prmsdk.NewRegistry(), vec)).To(Succeed())

		called := false
		m.SetCollect(func(ctx context.Context, mm libmet.Metric) {
			called = true
			_ = mm.SetGaugeValue([]string{"x"}, 1)
		})
		Expect(m.GetCollect()).ToNot(BeNil())
		m.Collect(context.Background())
		Expect(called).To(BeTrue())
	})

	It("is a no-op to Collect with nothing set", func() {
		m := libmet.NewMetrics("t_collect_nil", libmet.Gauge)
		Expect(m.GetCollect()).To(BeNil())
		m.Collect(context.Background())
	})
})

var _ = Describe("Pool", func() {
	It("adds, gets, lists, walks and deletes metrics", func() {
		p := libmet.NewPool(prmsdk.NewRegistry())

		c := libmet.NewMetrics("p_counter", libmet.Counter)
		g := libmet.NewMetrics("p_gauge", libmet.Gauge)

		Expect(p.Add(c)).To(Succeed())
		Expect(p.Add(g)).To(Succeed())

		Expect(p.Get("p_counter")).To(Equal(c))
		Expect(p.List()).To(ConsistOf("p_counter", "p_gauge"))

		seen := map[string]bool{}
		p.Walk(func(_ libmet.Pool, key string, _ libmet.Metric) bool {
			seen[key] = true
			return true
		})
		Expect(seen).To(HaveKey("p_counter"))
		Expect(seen).To(HaveKey("p_gauge"))

		p.Del("p_counter")
		Expect(p.List()).To(ConsistOf("p_gauge"))
		Expect(p.Get("p_counter")).To(BeNil())
	})

	It("stops Walk early when the callback returns false", func() {
		p := libmet.NewPool(prmsdk.NewRegistry())
		Expect(p.Add(libmet.NewMetrics("w1", libmet.Counter))).To(Succeed())
		Expect(p.Add(libmet.NewMetrics("w2", libmet.Counter))).To(Succeed())

		visited := 0
		p.Walk(func(_ libmet.Pool, _ string, _ libmet.Metric) bool {
			visited++
			return false
		})
		Expect(visited).To(Equal(1))
	})

	It("rejects adding a nil metric", func() {
		p := libmet.NewPool(prmsdk.NewRegistry())
		Expect(p.Add(nil)).To(HaveOccurred())
	})
})

var _ = Describe("Runtime", func() {
	It("publishes poll duration, run-queue depth, active sinks and cross-worker submits", func() {
		r, err := libmet.NewRuntime(prmsdk.NewRegistry())
		Expect(err).ToNot(HaveOccurred())

		r.ObservePoll(0, 250*time.Microsecond)
		r.SetRunQueueDepth(0, 3)
		r.SetActiveSinks(0, 7)
		r.IncCrossWorkerSubmit(1, 0)

		names := r.Pool().List()
		Expect(names).To(ContainElements(
			"fibercore_poll_duration_seconds",
			"fibercore_run_queue_depth",
			"fibercore_active_sinks",
			"fibercore_cross_worker_submits_total",
		))
	})

	It("fails construction when the registerer already holds a conflicting collector", func() {
		reg := prmsdk.NewRegistry()
		Expect(reg.Register(prmsdk.NewCounter(prmsdk.CounterOpts{
			Name: "fibercore_poll_duration_seconds",
		}))).To(Succeed())

		_, err := libmet.NewRuntime(reg)
		Expect(err).To(HaveOccurred())
	})
})
