// Package face defines the face-estimate contract shared by the capture
// pipeline and the external detector collaborator.
package face

// Estimate is a single face bounding box, normalized to [0,1] against the
// dimensions of the frame it was detected in. Estimates are transient: a new
// one is produced every detection tick and never persisted.
type Estimate struct {
	X, Y, W, H float64

	// SourceWidth and SourceHeight are the pixel dimensions of the frame the
	// estimate was computed against.
	SourceWidth, SourceHeight int
}

// CenterX returns the normalized horizontal center of the box.
func (e Estimate) CenterX() float64 { return e.X + e.W/2 }

// CenterY returns the normalized vertical center of the box.
func (e Estimate) CenterY() float64 { return e.Y + e.H/2 }

// Detector defines the contract for an external face detector. Detect returns
// at most one bounding box per call; a nil Estimate with a nil error means no
// face was found. Implementations may be permanently unavailable, in which
// case they should keep returning an error rather than blocking.
type Detector interface {
	Detect() (*Estimate, error)
}
