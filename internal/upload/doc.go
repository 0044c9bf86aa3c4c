// Package upload implements the HTTP client for the speech-processing
// endpoint. It sends one multipart request per invocation with the canonical
// audio payload and normalizes every outcome into either a typed result or
// a classified pipeline error. Retry policy belongs to the caller; this
// layer makes exactly one attempt.
package upload
