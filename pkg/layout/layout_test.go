package layout

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/matzehuels/itchpage/pkg/errors"
)

func TestGridShape(t *testing.T) {
	tests := []struct {
		n          int
		cols, rows int
	}{
		{1, 1, 1}, {2, 2, 1},
		{3, 2, 2}, {4, 2, 2},
		{5, 3, 2}, {6, 3, 2},
		{7, 3, 3}, {8, 3, 3}, {9, 3, 3},
		{10, 4, 3}, {11, 4, 3}, {12, 4, 3},
		{13, 4, 4}, {14, 4, 4}, {15, 4, 4}, {16, 4, 4},
		{17, 4, 5}, {18, 4, 5}, {19, 4, 5}, {20, 4, 5},
	}

	for _, tt := range tests {
		cols, rows := GridShape(tt.n)
		if cols != tt.cols || rows != tt.rows {
			t.Errorf("GridShape(%d) = (%d, %d), want (%d, %d)", tt.n, cols, rows, tt.cols, tt.rows)
		}
	}
}

func TestClampGutter(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{4, 4}, {12, 12}, {32, 32},
		{3, DefaultGutter}, {33, DefaultGutter}, {0, DefaultGutter}, {-5, DefaultGutter},
	}
	for _, tt := range tests {
		if got := ClampGutter(tt.in); got != tt.want {
			t.Errorf("ClampGutter(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
	}{
		{"Grid", Grid}, {"masonry", Masonry}, {"Masonry", Masonry},
		{" LINEAR ", Linear}, {"", Grid}, {"spiral", Grid},
	}
	for _, tt := range tests {
		if got := ParseStrategy(tt.in); got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if Masonry.Title() != "Masonry" {
		t.Errorf("Title() = %q", Masonry.Title())
	}
}

func TestSolveNoImages(t *testing.T) {
	for _, s := range Strategies {
		_, err := Solve(nil, Options{Strategy: s})
		if !errors.Is(err, errors.ErrCodeValidation) {
			t.Errorf("%s: error = %v, want validation error", s, err)
		}
		if !stderrors.Is(err, errors.ErrNoImages) {
			t.Errorf("%s: error should wrap ErrNoImages", s)
		}
	}
}

func TestSolveInvalidSize(t *testing.T) {
	_, err := Solve([]Size{{100, 0}}, Options{})
	if !errors.Is(err, errors.ErrCodeValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func mixedSizes(n int) []Size {
	pool := []Size{{1920, 1080}, {800, 600}, {600, 900}, {1024, 1024}, {300, 1200}, {2000, 500}}
	out := make([]Size, n)
	for i := range out {
		out[i] = pool[i%len(pool)]
	}
	return out
}

func TestSolveInvariants(t *testing.T) {
	for _, s := range Strategies {
		for n := 1; n <= 20; n++ {
			res, err := Solve(mixedSizes(n), Options{Strategy: s, Gutter: 12})
			if err != nil {
				t.Fatalf("%s n=%d: %v", s, n, err)
			}
			if len(res.Rects) != n {
				t.Errorf("%s n=%d: got %d rects", s, n, len(res.Rects))
			}
			if res.Height <= 0 {
				t.Errorf("%s n=%d: height = %d", s, n, res.Height)
			}
			if res.Width != TargetWidth {
				t.Errorf("%s n=%d: width = %d", s, n, res.Width)
			}
			for i, r := range res.Rects {
				if r.Empty() {
					t.Errorf("%s n=%d: rect %d is empty: %+v", s, n, i, r)
				}
				if r.Right() > TargetWidth || r.Bottom() > res.Height {
					t.Errorf("%s n=%d: rect %d %+v outside %dx%d", s, n, i, r, TargetWidth, res.Height)
				}
				for j := i + 1; j < len(res.Rects); j++ {
					if r.Overlaps(res.Rects[j]) {
						t.Errorf("%s n=%d: rects %d and %d overlap", s, n, i, j)
					}
				}
			}
		}
	}
}

func TestSolveGrid(t *testing.T) {
	res, err := Solve(mixedSizes(5), Options{Strategy: Grid, Gutter: 12})
	if err != nil {
		t.Fatal(err)
	}

	// 3 columns: (920 - 24) / 3 = 298
	cell := 298
	want := []Rect{
		{0, 0, cell, cell},
		{310, 0, cell, cell},
		{620, 0, cell, cell},
		{0, 310, cell, cell},
		{310, 310, cell, cell},
	}
	if !reflect.DeepEqual(res.Rects, want) {
		t.Errorf("Rects = %+v, want %+v", res.Rects, want)
	}
	if res.Height != 2*cell+12 {
		t.Errorf("Height = %d, want %d", res.Height, 2*cell+12)
	}
}

func TestSolveGridSingle(t *testing.T) {
	res, err := Solve([]Size{{640, 480}}, Options{Strategy: Grid})
	if err != nil {
		t.Fatal(err)
	}
	want := Rect{0, 0, TargetWidth, TargetWidth}
	if res.Rects[0] != want || res.Height != TargetWidth {
		t.Errorf("got %+v height %d, want %+v", res.Rects[0], res.Height, want)
	}
}

func TestSolveMasonryPicksShortestColumn(t *testing.T) {
	sizes := []Size{{100, 200}, {100, 50}, {100, 100}, {100, 100}, {100, 30}, {100, 300}, {100, 100}}
	gutter := 10
	res, err := Solve(sizes, Options{Strategy: Masonry, Gutter: gutter})
	if err != nil {
		t.Fatal(err)
	}

	colW := (TargetWidth - 2*gutter) / 3
	heights := make([]int, 3)
	for k, r := range res.Rects {
		// Independently compute the shortest column before placing image k.
		want := 0
		for c := range heights {
			if heights[c] < heights[want] {
				want = c
			}
		}
		got := r.X / (colW + gutter)
		if got != want {
			t.Errorf("image %d placed in column %d, want %d (heights %v)", k, got, want, heights)
		}
		if r.Y != heights[want] {
			t.Errorf("image %d y = %d, want %d", k, r.Y, heights[want])
		}
		if wantH := colW * sizes[k].H / sizes[k].W; r.H != wantH {
			t.Errorf("image %d height = %d, want %d", k, r.H, wantH)
		}
		heights[want] += r.H + gutter
	}

	tallest := 0
	for _, h := range heights {
		tallest = max(tallest, h)
	}
	if res.Height != tallest-gutter {
		t.Errorf("Height = %d, want %d", res.Height, tallest-gutter)
	}
}

func TestSolveMasonryTieBreaksLowestIndex(t *testing.T) {
	res, err := Solve([]Size{{100, 100}, {100, 100}, {100, 100}, {100, 100}}, Options{Strategy: Masonry, Gutter: 12})
	if err != nil {
		t.Fatal(err)
	}
	colW := (TargetWidth - 24) / 3
	wantX := []int{0, colW + 12, 2 * (colW + 12), 0}
	for i, r := range res.Rects {
		if r.X != wantX[i] {
			t.Errorf("rect %d x = %d, want %d", i, r.X, wantX[i])
		}
	}
}

func TestSolveMasonryColumnCap(t *testing.T) {
	res, _ := Solve(mixedSizes(2), Options{Strategy: Masonry})
	if res.Columns != 2 {
		t.Errorf("Columns = %d, want 2", res.Columns)
	}
	res, _ = Solve(mixedSizes(8), Options{Strategy: Masonry, MaxColumns: 4})
	if res.Columns != 4 {
		t.Errorf("Columns = %d, want 4", res.Columns)
	}
}

func TestSolveLinear(t *testing.T) {
	res, err := Solve([]Size{{1920, 1080}, {800, 600}}, Options{Strategy: Linear, Gutter: 16})
	if err != nil {
		t.Fatal(err)
	}
	want := []Rect{
		{0, 0, 920, 517},
		{0, 533, 920, 690},
	}
	if !reflect.DeepEqual(res.Rects, want) {
		t.Errorf("Rects = %+v, want %+v", res.Rects, want)
	}
	if res.Height != 517+690+16 {
		t.Errorf("Height = %d, want %d", res.Height, 517+690+16)
	}
}

func TestSolveOutOfRangeGutterUsesDefault(t *testing.T) {
	a, _ := Solve(mixedSizes(4), Options{Strategy: Linear, Gutter: 100})
	b, _ := Solve(mixedSizes(4), Options{Strategy: Linear, Gutter: DefaultGutter})
	if !reflect.DeepEqual(a, b) {
		t.Error("out-of-range gutter should behave like the default gutter")
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	for _, s := range Strategies {
		a, _ := Solve(mixedSizes(11), Options{Strategy: s, Gutter: 8})
		b, _ := Solve(mixedSizes(11), Options{Strategy: s, Gutter: 8})
		if !reflect.DeepEqual(a, b) {
			t.Errorf("%s: results differ between identical calls", s)
		}
	}
}

func TestResultFit(t *testing.T) {
	res, _ := Solve(mixedSizes(6), Options{Strategy: Linear})
	fit := res.Fit(400, 320)
	if fit.Height > 320 || fit.Width > 400 {
		t.Errorf("Fit() = %dx%d, want within 400x320", fit.Width, fit.Height)
	}
	for i, r := range fit.Rects {
		if r.Empty() {
			t.Errorf("rect %d empty after Fit", i)
		}
	}

	small := Result{Rects: []Rect{{0, 0, 10, 10}}, Width: 10, Height: 10}
	if got := small.Fit(400, 320); !reflect.DeepEqual(got, small) {
		t.Error("Fit() should not upscale")
	}
}
