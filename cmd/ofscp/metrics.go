// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"net/http"

	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rorumall/go-ofscp/network"
)

var netMetrics = network.NopMetrics()

func startMetrics(addr string) {
	if addr == "" {
		return
	}

	netMetrics = network.PrometheusMetrics("ofscp")

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		level.Info(log).Log("starting", "metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			level.Error(log).Log("event", "metrics listener failed", "err", err)
		}
	}()
}
