// Package sink writes finished rasters to disk.
//
// Every pipeline ends here. Files are written to a temporary sibling first and
// renamed into place only after the encoder succeeded, so a failed export never
// leaves a partial artifact at the destination path.
//
// The package provides:
//   - [WriteAtomic]: temp-file-then-rename for any encoder
//   - [WritePNG], [WriteJPEG]: lossless and lossy raster encoders
//   - [CopyFile]: byte-identical copy used by pass-through paths
//   - [TimestampedName]: timestamped destination names
//   - [Reserve]: exclusive claims on default names for concurrent exports
package sink
