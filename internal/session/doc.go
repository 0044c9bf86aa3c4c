// Package session implements the recording controller, the state machine
// that sequences capture, conversion, and upload for one utterance at a
// time. At most one session is ever active; gestures arriving in the wrong
// state are ignored rather than queued, and every session terminates in
// exactly one stored result or one classified error before the controller
// returns to idle.
package session
