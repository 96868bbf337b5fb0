// Package sinks implements progress consumers: a structured log sink and a sink that
// forwards events to a store.ProgressRepository.
package sinks
