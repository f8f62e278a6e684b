package reencode

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/frames"
	"github.com/matzehuels/itchpage/pkg/sink"
)

// Result summarizes one re-encode.
type Result struct {
	Path        string
	Passthrough bool // source copied unchanged
	Plan        Plan
	InputBytes  int64
	OutputBytes int64
	InputFrames int
	Frames      int
}

// OverBudget reports whether the written file still exceeds b.
func (r Result) OverBudget(b Budget) bool {
	return r.OutputBytes > b.Bytes()
}

// OptimizeFile shrinks the animated GIF at in to fit b and writes it to out.
// A source already within budget is copied byte for byte.
func OptimizeFile(ctx context.Context, in, out string, b Budget, logger *log.Logger) (Result, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	info, err := os.Stat(in)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeNotFound, err, "open %s", filepath.Base(in))
	}

	if info.Size() <= b.Bytes() {
		logger.Debug("within budget, copying", "path", in, "bytes", info.Size(), "budget", b.Bytes())
		if err := sink.CopyFile(in, out); err != nil {
			return Result{}, errors.Wrap(errors.ErrCodeInternal, err, "copy %s", filepath.Base(in))
		}
		return Result{Path: out, Passthrough: true, InputBytes: info.Size(), OutputBytes: info.Size()}, nil
	}

	seq, err := frames.FromGIFFile(in)
	if err != nil {
		return Result{}, err
	}
	if seq.Len() < 2 {
		return Result{}, errors.Validation("%s is not an animated GIF", filepath.Base(in))
	}

	res, err := Encode(ctx, seq, out, b, logger)
	res.InputBytes = info.Size()
	return res, err
}

// Encode plans, reduces and writes seq to out as a GIF.
func Encode(ctx context.Context, seq frames.Sequence, out string, b Budget, logger *log.Logger) (Result, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	plan := PlanFor(seq.Width, seq.Height, seq.Len(), b)
	logger.Debug("reduction plan",
		"from", [2]int{seq.Width, seq.Height}, "to", [2]int{plan.Width, plan.Height},
		"colors", plan.MaxColors, "stride", plan.Stride, "frames", seq.Len())

	reduced, err := Reduce(ctx, seq, plan, b.Dither())
	if err != nil {
		return Result{}, errors.Conversion(err, "reduce frames")
	}

	err = sink.WriteAtomic(out, func(w io.Writer) error {
		return EncodeGIF(ctx, w, reduced, EncodeOptions{Colors: plan.MaxColors, Dither: b.Dither()})
	})
	if err != nil {
		return Result{}, errors.Conversion(err, "encode %s", filepath.Base(out))
	}

	res := Result{Path: out, Plan: plan, InputFrames: seq.Len(), Frames: reduced.Len()}
	if st, err := os.Stat(out); err == nil {
		res.OutputBytes = st.Size()
	}
	if res.OverBudget(b) {
		logger.Warn("output exceeds budget", "path", out, "bytes", res.OutputBytes, "budget", b.Bytes())
	}
	return res, nil
}
