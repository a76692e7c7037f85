package present

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"
)

// FilePresenter is a Presenter with no real display: it locks a plain
// byte slice and, on Update, encodes the current contents as a PNG at
// Path. It exists so cmd/rasterdemo can produce visible output without
// a windowing system, which stays out of scope.
type FilePresenter struct {
	Path string

	width, height int

	mu     sync.Mutex
	pixels []byte
	locked bool
}

// NewFilePresenter allocates a width x height presenter writing PNGs to
// path on every Update.
func NewFilePresenter(path string, width, height int) *FilePresenter {
	return &FilePresenter{
		Path:   path,
		width:  width,
		height: height,
		pixels: make([]byte, width*height*4),
	}
}

// Lock returns the backing byte slice. FilePresenter has no concurrent
// readers to synchronize against; the lock only guards against a
// second concurrent Lock from another goroutine.
func (p *FilePresenter) Lock() []byte {
	p.mu.Lock()
	p.locked = true
	return p.pixels
}

// Unlock releases the window acquired by Lock.
func (p *FilePresenter) Unlock() {
	p.locked = false
	p.mu.Unlock()
}

// Update encodes the current pixel contents as a PNG and writes it to
// Path, truncating any existing file.
func (p *FilePresenter) Update() error {
	if !p.mu.TryLock() {
		return fmt.Errorf("present: Update called while still locked")
	}
	defer p.mu.Unlock()
	if p.locked {
		return fmt.Errorf("present: Update called while still locked")
	}

	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	copy(img.Pix, p.pixels)

	f, err := os.Create(p.Path)
	if err != nil {
		return fmt.Errorf("present: create %s: %w", p.Path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("present: encode %s: %w", p.Path, err)
	}
	return nil
}

// WritePixels packs a rasterizer's uint32 pixel buffer (R, G, B, A byte
// order per word, as raster.AdaptPixel produces) into the presenter's
// locked window. Callers typically call this once per frame, between
// Lock and Unlock:
//
//	dst := presenter.Lock()
//	present.WritePixels(dst, pixels)
//	presenter.Unlock()
//	presenter.Update()
func WritePixels(dst []byte, pixels []uint32) error {
	if len(dst) != len(pixels)*4 {
		return fmt.Errorf("present: window is %d bytes, want %d for %d pixels", len(dst), len(pixels)*4, len(pixels))
	}
	for i, px := range pixels {
		binary.LittleEndian.PutUint32(dst[i*4:], px)
	}
	return nil
}
