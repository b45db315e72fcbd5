// Package metrics records engine activity.
package metrics

import "time"

// Label keys understood by the recorders.
const (
	LabelOutcome = "outcome"
	LabelAsset   = "asset"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Noop discards everything.
type Noop struct{}

func (Noop) IncCounter(string, map[string]string)                    {}
func (Noop) ObserveLatency(string, time.Duration, map[string]string) {}
