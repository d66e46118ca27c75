// Package metrics records link-resolution and build counters.
//
// Components receive a Recorder and default to NoopRecorder, so metrics can be
// switched on without touching call sites.
package metrics

import "time"

// Entry build results.
const (
	EntryWritten   = "written"
	EntryUnchanged = "unchanged"
	EntryFailed    = "failed"
	EntryRemoved   = "removed"
)

// Recorder defines observability hooks for the resolver and build pipeline.
type Recorder interface {
	// IncLink counts one rewritten wikilink by kind (resolved|unresolved|broken).
	IncLink(kind string)
	// IncEntry counts one entry processed by a build, by result.
	IncEntry(result string)
	// ObserveBuildDuration records the wall time of a full build.
	ObserveBuildDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncLink(string)                     {}
func (NoopRecorder) IncEntry(string)                    {}
func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
