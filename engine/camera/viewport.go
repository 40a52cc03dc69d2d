package camera

import (
	"sync"
)

type viewportImpl struct {
	mu *sync.Mutex

	x, y          int
	width, height int
	revision      uint64
}

// ViewportState is a consistent copy of a viewport taken under one lock.
type ViewportState struct {
	X, Y          int
	Width, Height int
	Revision      uint64
}

// Viewport defines the output rectangle. Resizes happen asynchronously (window callbacks)
// and are picked up by polling Revision at the start of a frame.
type Viewport interface {
	// X returns the horizontal offset of the viewport.
	X() int

	// Y returns the vertical offset of the viewport.
	Y() int

	// Width returns the viewport width in pixels.
	Width() int

	// Height returns the viewport height in pixels.
	Height() int

	// Size returns both dimensions under a single lock.
	//
	// Returns:
	//   - width, height: the viewport dimensions
	Size() (width, height int)

	// Aspect returns width / height.
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Revision returns a counter that changes whenever the rectangle changes.
	//
	// Returns:
	//   - uint64: the current revision
	Revision() uint64

	// Snapshot returns the rectangle and its revision read together. A frame works from one
	// snapshot so a resize arriving mid-frame is picked up by the next one.
	//
	// Returns:
	//   - ViewportState: the current rectangle and revision
	Snapshot() ViewportState

	// Changed reports whether the viewport moved past a revision seen earlier.
	//
	// Parameters:
	//   - seen: a revision previously returned by Revision
	//
	// Returns:
	//   - bool: true if the viewport changed since seen
	Changed(seen uint64) bool

	// SetSize resizes the viewport. Non-positive values are raised to 1.
	//
	// Parameters:
	//   - width, height: the new dimensions
	SetSize(width, height int)

	// SetOffset moves the viewport.
	//
	// Parameters:
	//   - x, y: the new offset
	SetOffset(x, y int)
}

var _ Viewport = &viewportImpl{}

// NewViewport creates a viewport at the origin.
//
// Parameters:
//   - width, height: the initial dimensions
//
// Returns:
//   - Viewport: the new viewport at revision 1
func NewViewport(width, height int) Viewport {
	return &viewportImpl{
		mu:       &sync.Mutex{},
		width:    max(width, 1),
		height:   max(height, 1),
		revision: 1,
	}
}

func (v *viewportImpl) X() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.x
}

func (v *viewportImpl) Y() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.y
}

func (v *viewportImpl) Width() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width
}

func (v *viewportImpl) Height() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.height
}

func (v *viewportImpl) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

func (v *viewportImpl) Aspect() float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return float32(v.width) / float32(v.height)
}

func (v *viewportImpl) Revision() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revision
}

func (v *viewportImpl) Snapshot() ViewportState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ViewportState{X: v.x, Y: v.y, Width: v.width, Height: v.height, Revision: v.revision}
}

func (v *viewportImpl) Changed(seen uint64) bool {
	return v.Revision() != seen
}

func (v *viewportImpl) SetSize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	width, height = max(width, 1), max(height, 1)
	if v.width == width && v.height == height {
		return
	}
	v.width, v.height = width, height
	v.revision++
}

func (v *viewportImpl) SetOffset(x, y int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.x == x && v.y == y {
		return
	}
	v.x, v.y = x, y
	v.revision++
}
