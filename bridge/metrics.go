package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Error kinds counted by the errors_total metric.
const (
	errOSCSend   = "osc_send"
	errOSCRecv   = "osc_receive"
	errOSCDecode = "osc_decode"
	errTranslate = "translate"
	errMIDISend  = "midi_send"
)

type metrics struct {
	midiReceived prometheus.Counter
	midiSent     prometheus.Counter
	oscReceived  prometheus.Counter
	oscSent      prometheus.Counter
	errors       *prometheus.CounterVec
}

// newMetrics creates the bridge collectors and registers them with reg. A
// nil reg leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	m := &metrics{
		midiReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bcr2kosc",
			Name:      "midi_received_total",
			Help:      "MIDI messages read from the input port.",
		}),
		midiSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bcr2kosc",
			Name:      "midi_sent_total",
			Help:      "MIDI messages written to the output port.",
		}),
		oscReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bcr2kosc",
			Name:      "osc_packets_received_total",
			Help:      "OSC packets decoded from the listening socket.",
		}),
		oscSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bcr2kosc",
			Name:      "osc_datagrams_sent_total",
			Help:      "OSC datagrams sent, counted once per destination.",
		}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcr2kosc",
			Name:      "errors_total",
			Help:      "Messages dropped or failed, by kind.",
		}, []string{"kind"}),
	}
	for _, kind := range []string{errOSCSend, errOSCRecv, errOSCDecode, errTranslate, errMIDISend} {
		m.errors.WithLabelValues(kind)
	}
	return m
}
