// Package layout arranges a variable number of differently sized images on a
// fixed-width canvas.
//
// Three strategies are available:
//
//   - [Grid]: a fixed step function of the image count picks the column and
//     row count; every cell is square and images are cropped into it.
//   - [Masonry]: up to three columns; each image keeps its aspect ratio and is
//     dropped into the currently shortest column (lowest index on ties).
//   - [Linear]: a single full-width column of aspect-preserving frames.
//
// [Solve] is a pure function: identical inputs always produce identical
// rectangles. Gutters outside [MinGutter, MaxGutter] silently fall back to
// [DefaultGutter].
//
// # Example
//
//	res, err := layout.Solve([]layout.Size{{1920, 1080}, {800, 600}}, layout.Options{
//	    Strategy: layout.Masonry,
//	    Gutter:   12,
//	})
//	if err != nil {
//	    return err
//	}
//	for i, r := range res.Rects {
//	    fmt.Println(i, r.X, r.Y, r.W, r.H)
//	}
package layout
