package export

// BBox is an element's bounding box in slide pixel coordinates.
type BBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// TextStyle carries the visual attributes recovered for a text element.
// Zero values mean builder defaults.
type TextStyle struct {
	FontSizePt float64
	Bold       bool
	Italic     bool
	ColorHex   string
	Align      string
}

// DocumentBuilder is the presentation file being assembled. One builder
// instance produces one document; builders are not safe for concurrent
// use and the service drives them from a single goroutine.
type DocumentBuilder interface {
	// SetSlideSize fixes the slide dimensions in pixels. Must be called
	// before the first slide is added.
	SetSlideSize(widthPx, heightPx int) error

	// AddBlankSlide appends an empty slide and returns its index.
	AddBlankSlide() (int, error)

	// AddImageElement places an image file on the slide. A zero-valued
	// box means full-slide.
	AddImageElement(slide int, imagePath string, box BBox) error

	// AddTextElement places a text box on the slide.
	AddTextElement(slide int, text string, box BBox, style TextStyle) error

	// AddTableElement places a table on the slide. cells is row-major.
	AddTableElement(slide int, cells [][]string, box BBox) error

	// Save writes the finished document to path.
	Save(path string) error

	// Bytes returns the finished document as a byte stream.
	Bytes() ([]byte, error)
}
