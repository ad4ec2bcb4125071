package clip

import (
	"image"
	"testing"
	"time"
)

func frame(id int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, id+1, 1))
}

func TestCap(t *testing.T) {
	tests := []struct {
		name     string
		timer    time.Duration
		interval time.Duration
		want     int
	}{
		{"3s at 100ms", 3 * time.Second, 100 * time.Millisecond, 30},
		{"3s at 200ms", 3 * time.Second, 200 * time.Millisecond, 15},
		{"uneven division rounds up", 1 * time.Second, 300 * time.Millisecond, 4},
		{"zero interval", time.Second, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.timer, tt.interval).Cap(); got != tt.want {
				t.Errorf("Cap() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSlidingWindow(t *testing.T) {
	c := New(3*time.Second, 100*time.Millisecond)
	for i := 0; i < 40; i++ {
		c.Append(frame(i))
	}
	if c.Len() != 30 {
		t.Fatalf("Len() = %d, want 30", c.Len())
	}
	// Oldest frames dropped: first kept frame is #10.
	if got := c.Frame(0).Bounds().Dx(); got != 11 {
		t.Errorf("first frame id = %d, want 10", got-1)
	}
	if got := c.Frame(29).Bounds().Dx(); got != 40 {
		t.Errorf("last frame id = %d, want 39", got-1)
	}
}

func TestSealFreezeEffect(t *testing.T) {
	c := New(3*time.Second, 100*time.Millisecond)
	for i := 0; i < 30; i++ {
		c.Append(frame(i))
	}
	still := frame(99)
	c.Seal(still)

	if c.Len() != 35 {
		t.Fatalf("sealed Len() = %d, want 35", c.Len())
	}
	for i := 30; i < 35; i++ {
		if c.Frame(i) != still {
			t.Errorf("frame %d is not the shutter still", i)
		}
	}
	if !c.Sealed() {
		t.Error("Sealed() = false after Seal")
	}

	// Sealed clips ignore further mutation.
	c.Append(frame(1))
	c.Seal(frame(2))
	if c.Len() != 35 {
		t.Errorf("Len() after post-seal mutation = %d, want 35", c.Len())
	}
}

func TestFramesReturnsCopy(t *testing.T) {
	c := New(time.Second, 100*time.Millisecond)
	c.Append(frame(0))
	c.Seal(frame(1))

	got := c.Frames()
	got[0] = frame(42)
	if c.Frame(0).Bounds().Dx() != 1 {
		t.Error("mutating the returned slice altered the sealed clip")
	}
}
