// Package viseme carries the mouth-shape timeline returned by the speech
// service. The timeline is transported verbatim as opaque JSON; decoding into
// typed mouth cues is offered for the animation consumer but is never part of
// the upload path, so a malformed timeline cannot fail a session.
package viseme

import (
	"encoding/json"
	"fmt"
)

// Timeline is the raw viseme payload exactly as the server produced it.
// Order is preserved; the pipeline never interprets its contents.
type Timeline json.RawMessage

// MouthCue is a single timed mouth shape within an utterance.
type MouthCue struct {
	Start float64 `json:"start"` // seconds from utterance start
	End   float64 `json:"end"`   // seconds from utterance start
	Value string  `json:"value"` // shape identifier, e.g. "A".."H", "X"
}

// cueDocument matches the server's timeline shape.
type cueDocument struct {
	MouthCues []MouthCue `json:"mouthCues"`
}

// MarshalJSON emits the timeline verbatim.
func (t Timeline) MarshalJSON() ([]byte, error) {
	if len(t) == 0 {
		return []byte("null"), nil
	}
	return t, nil
}

// UnmarshalJSON stores the raw bytes without inspecting them.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	*t = append((*t)[:0], data...)
	return nil
}

// IsEmpty reports whether the timeline carries no payload.
func (t Timeline) IsEmpty() bool {
	return len(t) == 0 || string(t) == "null"
}

// Cues decodes the timeline into ordered mouth cues. It accepts both the
// object form {"mouthCues": [...]} and a bare cue array.
func (t Timeline) Cues() ([]MouthCue, error) {
	if t.IsEmpty() {
		return nil, nil
	}

	var doc cueDocument
	if err := json.Unmarshal(t, &doc); err == nil && doc.MouthCues != nil {
		return doc.MouthCues, nil
	}

	var cues []MouthCue
	if err := json.Unmarshal(t, &cues); err != nil {
		return nil, fmt.Errorf("viseme timeline is neither a cue document nor a cue array: %w", err)
	}
	return cues, nil
}

// Duration returns the end time of the last cue in seconds, or zero for an
// empty or undecodable timeline.
func (t Timeline) Duration() float64 {
	cues, err := t.Cues()
	if err != nil || len(cues) == 0 {
		return 0
	}
	return cues[len(cues)-1].End
}
