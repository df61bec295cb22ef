// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package backend

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "snapdiff"

// Blob load outcomes.
const (
	blobLoaded  = "loaded"
	blobMissing = "missing"
	blobFailed  = "failed"
)

type metrics struct {
	requestDuration *prometheus.HistogramVec
	blobLoads       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by route, method and status code.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
			},
			[]string{"handler", "method", "code"},
		),
		blobLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "artifact_blob_loads_total",
				Help:      "Artifact blob reads by outcome.",
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.requestDuration, m.blobLoads} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
