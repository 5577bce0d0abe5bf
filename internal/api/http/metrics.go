package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redirect outcomes reported by the redirects counter.
const (
	outcomeRedirected = "redirected"
	outcomeNotFound   = "not_found"
	outcomeExpired    = "expired"
	outcomeExhausted  = "exhausted"
	outcomeError      = "error"
)

var (
	redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortly_redirects_total",
		Help: "Redirect requests by resolver outcome.",
	}, []string{"outcome"})

	linksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortly_links_created_total",
		Help: "Short links created.",
	})
)
