// Package gocvsource adapts a gocv video capture device to the pipeline's
// FrameSource contract. The device is held open between reads; first-frame
// availability is not guaranteed, so Dimensions reports zeros until the first
// successful read and callers fall back to retrying on their next tick.
package gocvsource

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Source exports the current frame and intrinsic dimensions of a capture
// device.
type Source struct {
	deviceID int

	mu     sync.Mutex
	webcam *gocv.VideoCapture
	mat    gocv.Mat
	ready  bool
}

// New opens the supplied deviceID and returns a Source backed by it.
func New(deviceID int) (*Source, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("gocvsource: unable to open video capture device %v: %w", deviceID, err)
	}
	return &Source{deviceID: deviceID, webcam: webcam, mat: gocv.NewMat()}, nil
}

// Dimensions returns the pixel size of the last captured frame, or zeros if
// nothing has been read yet.
func (s *Source) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return 0, 0
	}
	return s.mat.Cols(), s.mat.Rows()
}

// Frame reads and returns the current frame from the device.
func (s *Source) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok := s.webcam.Read(&s.mat); !ok {
		return nil, fmt.Errorf("gocvsource: cannot read device %v", s.deviceID)
	}
	if s.mat.Empty() {
		return nil, fmt.Errorf("gocvsource: no image on device %v", s.deviceID)
	}
	s.ready = true
	return s.mat.ToImage()
}

// WarmUp reads frames until the device delivers one, making Dimensions valid.
// Some devices return empty mats for the first few reads after opening.
func (s *Source) WarmUp(attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if _, err = s.Frame(); err == nil {
			return nil
		}
	}
	return err
}

// Close releases the device and its frame buffer.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mat.Close(); err != nil {
		return err
	}
	return s.webcam.Close()
}
