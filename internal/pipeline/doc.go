// Package pipeline defines the error taxonomy shared by all pipeline stages.
// Every failure in capture, conversion, or upload is tagged with a Kind and
// a human-readable message so the session controller can surface exactly one
// classified outcome per attempt.
package pipeline
