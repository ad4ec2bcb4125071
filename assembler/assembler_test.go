package assembler

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelmcallister/photobooth/clip"
	"github.com/michaelmcallister/photobooth/layout"
)

// fakeEncoder records every call so tests can inspect negotiation, dimension
// normalization and the frame walk.
type fakeEncoder struct {
	supported bool
	ext       string

	beganPath      string
	beganW, beganH int
	fps            float64
	frames         int
	closed         bool
	writeErr       error
}

func (f *fakeEncoder) Supported() bool { return f.supported }
func (f *fakeEncoder) Ext() string     { return f.ext }

func (f *fakeEncoder) Begin(path string, w, h int, fps float64) error {
	f.beganPath, f.beganW, f.beganH, f.fps = path, w, h, fps
	return nil
}

func (f *fakeEncoder) WriteFrame(image.Image) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.frames++
	return nil
}

func (f *fakeEncoder) Close() error {
	f.closed = true
	return nil
}

func testClips(t *testing.T, cells, frames int) []*clip.Clip {
	t.Helper()
	still := image.NewRGBA(image.Rect(0, 0, 480, 360))
	for y := 0; y < 360; y++ {
		for x := 0; x < 480; x++ {
			still.SetRGBA(x, y, color.RGBA{R: 0x80, G: 0x40, B: 0x20, A: 0xff})
		}
	}
	clips := make([]*clip.Clip, cells)
	for i := range clips {
		c := clip.New(time.Duration(frames)*100*time.Millisecond, 100*time.Millisecond)
		for j := 0; j < frames; j++ {
			c.Append(still)
		}
		clips[i] = c
	}
	return clips
}

func TestNegotiate(t *testing.T) {
	first := &fakeEncoder{supported: true, ext: "avi"}
	second := &fakeEncoder{supported: true, ext: "gif"}

	t.Run("first supported wins", func(t *testing.T) {
		enc, err := negotiate([]Encoder{first, second})
		if err != nil || enc != Encoder(first) {
			t.Errorf("negotiate = %v, %v; want first encoder, nil", enc, err)
		}
	})

	t.Run("falls through to last unconditionally", func(t *testing.T) {
		a := &fakeEncoder{supported: false, ext: "avi"}
		b := &fakeEncoder{supported: false, ext: "gif"}
		enc, err := negotiate([]Encoder{a, b})
		if !errors.Is(err, ErrEncoderUnsupported) {
			t.Errorf("err = %v, want ErrEncoderUnsupported", err)
		}
		if enc != Encoder(b) {
			t.Error("want last candidate as fallback")
		}
	})

	t.Run("empty list", func(t *testing.T) {
		enc, err := negotiate(nil)
		if enc != nil || !errors.Is(err, ErrEncoderUnsupported) {
			t.Errorf("negotiate(nil) = %v, %v", enc, err)
		}
	})
}

func TestAssembleEmpty(t *testing.T) {
	a := &Assembler{Layout: layout.Spec{Kind: layout.Grid2x2}, TargetDuration: time.Second}

	if _, err := a.Assemble(context.Background(), nil, "out"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("no clips: err = %v, want ErrEmptyInput", err)
	}

	empty := []*clip.Clip{clip.New(time.Second, 100*time.Millisecond)}
	if _, err := a.Assemble(context.Background(), empty, "out"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty clip: err = %v, want ErrEmptyInput", err)
	}
}

func TestAssemble(t *testing.T) {
	enc := &fakeEncoder{supported: true, ext: "avi"}
	a := &Assembler{
		Encoders:       []Encoder{enc},
		Layout:         layout.Spec{Kind: layout.Grid2x2, FrameColor: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		TargetDuration: 3 * time.Second,
	}

	res, err := a.Assemble(context.Background(), testClips(t, 4, 6), "out")
	if err != nil {
		t.Fatal(err)
	}
	if enc.frames != 6 || res.Frames != 6 {
		t.Errorf("frames = %d/%d, want 6", enc.frames, res.Frames)
	}
	if !enc.closed {
		t.Error("encoder not closed")
	}
	if res.Ext != "avi" || res.Path != "out.avi" {
		t.Errorf("result = %+v, want avi container", res)
	}
	// 6 frames over 3s → 2 fps.
	if enc.fps != 2 {
		t.Errorf("fps = %v, want 2", enc.fps)
	}
	// 480x360 cells in a 2x2 grid at half spacing: 1065x905, bumped to even.
	if enc.beganW != 1066 || enc.beganH != 906 {
		t.Errorf("output dims = %dx%d, want 1066x906", enc.beganW, enc.beganH)
	}
	if res.Width != enc.beganW || res.Height != enc.beganH {
		t.Errorf("result dims %dx%d disagree with encoder", res.Width, res.Height)
	}
}

func TestAssembleUsesMinFrames(t *testing.T) {
	enc := &fakeEncoder{supported: true, ext: "avi"}
	a := &Assembler{
		Encoders:       []Encoder{enc},
		Layout:         layout.Spec{Kind: layout.Grid2x2},
		TargetDuration: time.Second,
	}
	clips := testClips(t, 4, 6)
	clips[2] = testClips(t, 1, 4)[0]

	res, err := a.Assemble(context.Background(), clips, filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Frames != 4 {
		t.Errorf("frames = %d, want min clip length 4", res.Frames)
	}
}

func TestAssemblePacingSchedule(t *testing.T) {
	// With a fake clock the deadline waits must sum to exactly the target
	// duration, whatever the frame count.
	for _, n := range []int{1, 3, 7, 35} {
		enc := &fakeEncoder{supported: true, ext: "avi"}
		target := 3 * time.Second

		current := time.Unix(0, 0)
		var slept time.Duration
		a := &Assembler{
			Encoders:       []Encoder{enc},
			Layout:         layout.Spec{Kind: layout.Single},
			TargetDuration: target,
			Pace:           true,
			now:            func() time.Time { return current },
			sleep: func(_ context.Context, d time.Duration) error {
				if d > 0 {
					slept += d
					current = current.Add(d)
				}
				return nil
			},
		}

		if _, err := a.Assemble(context.Background(), testClips(t, 1, n), "out"); err != nil {
			t.Fatal(err)
		}
		want := time.Duration(n) * (target / time.Duration(n))
		if got := slept - flushHold; got != want {
			t.Errorf("n=%d: total deadline wait = %v, want %v", n, got, want)
		}
	}
}

func TestAssembleCancelledDuringFlushHold(t *testing.T) {
	// A cancellation landing in the flush window must fail the assembly
	// rather than finalize the container as a success.
	enc := &fakeEncoder{supported: true, ext: "avi"}
	a := &Assembler{
		Encoders:       []Encoder{enc},
		Layout:         layout.Spec{Kind: layout.Single},
		TargetDuration: time.Second,
		Pace:           true,
		now:            func() time.Time { return time.Unix(0, 0) },
		sleep: func(_ context.Context, d time.Duration) error {
			if d == flushHold {
				return context.Canceled
			}
			return nil
		},
	}
	_, err := a.Assemble(context.Background(), testClips(t, 1, 3), "out")
	if !errors.Is(err, ErrAssemblyFailed) {
		t.Errorf("err = %v, want ErrAssemblyFailed", err)
	}
}

func TestAssembleCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &Assembler{
		Encoders:       []Encoder{&fakeEncoder{supported: true, ext: "avi"}},
		Layout:         layout.Spec{Kind: layout.Single},
		TargetDuration: time.Second,
	}
	_, err := a.Assemble(ctx, testClips(t, 1, 10), "out")
	if !errors.Is(err, ErrAssemblyFailed) {
		t.Errorf("err = %v, want ErrAssemblyFailed", err)
	}
}

func TestAssembleWriteFailureDiscardsOutput(t *testing.T) {
	enc := &fakeEncoder{supported: true, ext: "avi", writeErr: errors.New("disk full")}
	a := &Assembler{
		Encoders:       []Encoder{enc},
		Layout:         layout.Spec{Kind: layout.Single},
		TargetDuration: time.Second,
	}
	_, err := a.Assemble(context.Background(), testClips(t, 1, 3), "out")
	if !errors.Is(err, ErrAssemblyFailed) {
		t.Errorf("err = %v, want ErrAssemblyFailed", err)
	}
}

func TestGIFEncoderProducesFile(t *testing.T) {
	enc := NewGIF()
	if !enc.Supported() {
		t.Fatal("gif fallback must always be supported")
	}
	path := filepath.Join(t.TempDir(), "out.gif")
	if err := enc.Begin(path, 64, 48, 10); err != nil {
		t.Fatal(err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := 0; i < 3; i++ {
		if err := enc.WriteFrame(frame); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEvenDims(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{640, 480, 640, 480},
		{641, 480, 642, 480},
		{640, 481, 640, 482},
		{1065, 905, 1066, 906},
	}
	for _, tt := range tests {
		if w, h := evenDims(tt.w, tt.h); w != tt.wantW || h != tt.wantH {
			t.Errorf("evenDims(%d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}
