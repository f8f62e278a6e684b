// Package ffmpeg wraps the external codec toolchain.
//
// Availability is probed once per [Toolchain] with `ffmpeg -version`. When
// the toolchain is missing, callers fall back to the bundled decoders in
// package frames.
//
// Every invocation runs under an explicit timeout:
//
//	detect     5s
//	probe      30s
//	extract    60s
//	transcode  120s
//
// A timeout is reported as a TIMEOUT error and a non-zero exit as an
// EXTERNAL_TOOL error; both are recoverable, so callers may fall back instead
// of aborting.
package ffmpeg
