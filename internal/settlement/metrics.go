package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var quotesExpiredCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "quotes_expired",
	Help: "The total number of quotes expired past their deadline",
})
