// Package protocol carries the version number of this module's wire format.
// The version command prints it; the HTTP ingestion surface neither sends
// nor checks it.
package protocol

// ProtocolVersion increments when ingestRequest's or pipeline.Result's wire
// shape changes in a way a caller needs to detect.
const ProtocolVersion = 1
