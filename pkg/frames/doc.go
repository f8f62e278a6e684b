// Package frames normalizes animated inputs into a uniform frame sequence.
//
// Two kinds of input are supported:
//
//   - Animated GIFs, decoded with their embedded per-frame delays. Frames are
//     composited over the logical screen so partial frames and disposal
//     methods render the way a browser shows them.
//   - Video, sampled through the codec toolchain at min(native fps, 15),
//     lowered so at most 100 frames are taken. When the toolchain is missing
//     or fails, a bundled decoder reads the first 100 frames of an image
//     sequence directory, an animated GIF or a Motion-JPEG stream and times
//     each at a fixed 200ms.
//
// Every [Sequence] has frames of identical dimensions (the first frame's)
// in source order, and every delay is at least 1ms.
package frames
