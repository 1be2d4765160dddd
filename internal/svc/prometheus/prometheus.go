package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	Labels prometheus.Labels
}

type Instance interface {
	Register(r prometheus.Registerer)

	RosterEvents() *prometheus.CounterVec
	RosterSignIns() prometheus.Counter
	RosterSignOuts() prometheus.Counter
	DecodeErrors() prometheus.Counter
}

func New(o Options) Instance {
	return &metricsInst{
		rosterEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "roster_events_total",
			Help:        "Broker events consumed by the roster, by event type.",
			ConstLabels: o.Labels,
		}, []string{"event"}),
		rosterSignIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "roster_sign_ins_total",
			Help:        "Offline to online transitions fired.",
			ConstLabels: o.Labels,
		}),
		rosterSignOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "roster_sign_outs_total",
			Help:        "Online to offline transitions fired.",
			ConstLabels: o.Labels,
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "roster_decode_errors_total",
			Help:        "Malformed event envelopes that terminated consumption.",
			ConstLabels: o.Labels,
		}),
	}
}

type metricsInst struct {
	rosterEvents   *prometheus.CounterVec
	rosterSignIns  prometheus.Counter
	rosterSignOuts prometheus.Counter
	decodeErrors   prometheus.Counter
}

func (m *metricsInst) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.rosterEvents,
		m.rosterSignIns,
		m.rosterSignOuts,
		m.decodeErrors,
	)
}

func (m *metricsInst) RosterEvents() *prometheus.CounterVec {
	return m.rosterEvents
}

func (m *metricsInst) RosterSignIns() prometheus.Counter {
	return m.rosterSignIns
}

func (m *metricsInst) RosterSignOuts() prometheus.Counter {
	return m.rosterSignOuts
}

func (m *metricsInst) DecodeErrors() prometheus.Counter {
	return m.decodeErrors
}
