package pipeline

import (
	"fmt"
	"io"

	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/schematic"
)

// Upload is one photo to run through the pipeline. Reading is deferred to
// the run so read failures surface as run failures.
type Upload struct {
	Name string
	load func() (imagecodec.Image, error)
}

// FileUpload reads the image at path when the run starts.
func FileUpload(path string) Upload {
	return Upload{Name: path, load: func() (imagecodec.Image, error) {
		return imagecodec.ReadFile(path)
	}}
}

// ReaderUpload reads r when the run starts. declaredMIME is the type the
// sender claimed, if any.
func ReaderUpload(name, declaredMIME string, r io.Reader) Upload {
	return Upload{Name: name, load: func() (imagecodec.Image, error) {
		return imagecodec.Read(r, declaredMIME)
	}}
}

func (u Upload) read() (imagecodec.Image, error) {
	if u.load == nil {
		return imagecodec.Image{}, fmt.Errorf("%w: no input", schematic.ErrRead)
	}
	return u.load()
}
