// Package reencode shrinks animations to fit a byte budget.
//
// A [Plan] is derived once from the first frame's dimensions, the frame
// count and the budget, then applied to every frame alike:
//
//  1. Short-circuit: a source already within budget is copied byte for byte.
//  2. Dimensions: at an estimated 1.5 bytes per pixel, both sides are scaled
//     by sqrt(targetPixels/currentPixels), floored, and kept at least 160x120.
//  3. Colors: a max-color count below 256 reduces each frame with median cut.
//  4. Frames: more than 50 frames are decimated by floor(n/50), keeping
//     frames 0, stride, 2*stride... and never more than 50.
//  5. Encoding: one looping GIF with each retained frame's own delay.
//
// Outputs are written to a temporary file and renamed on success, so a
// failed run never leaves a partial file at the destination.
package reencode
