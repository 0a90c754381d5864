package mocks

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/registry"
)

const ServiceImage = "image"

var (
	sampleImageOnce sync.Once
	sampleImagePath string
	sampleImageErr  error
)

// sampleImage writes a small JPEG to the temp dir once and returns its path
func sampleImage() (string, error) {
	sampleImageOnce.Do(func() {
		f, err := os.CreateTemp("", "pmp-image-*.jpg")
		if err != nil {
			sampleImageErr = fmt.Errorf("failed to create sample image: %w", err)
			return
		}
		defer f.Close() //nolint:errcheck // cleanup

		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		for x := 0; x < 8; x++ {
			for y := 0; y < 8; y++ {
				img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
			}
		}
		if err := jpeg.Encode(f, img, nil); err != nil {
			sampleImageErr = fmt.Errorf("failed to encode sample image: %w", err)
			return
		}
		sampleImagePath = f.Name()
	})
	return sampleImagePath, sampleImageErr
}

// Image mocks the current image attachment
type Image struct {
	generator
	file     string
	mockedID int64
	ids      []int64
}

// NewImage creates an image mocker uploading a generated sample JPEG
func NewImage(reg *registry.Registry, env *cms.Env) *Image {
	return &Image{generator: generator{reg: reg, env: env}}
}

// ProvideService implements mocker.Mocker
func (m *Image) ProvideService() string {
	return ServiceImage
}

// SetFile uploads file instead of the sample image from now on
func (m *Image) SetFile(file string) *Image {
	m.file = file
	return m
}

// Reset deletes every attachment the mocker created
func (m *Image) Reset() {
	for _, id := range m.ids {
		m.env.Store.DeletePost(id)
	}
	m.ids = nil
	m.mockedID = 0
}

// Mock implements mocker.Caller. With no arguments it reuses the current
// attachment; otherwise the PostArgs Parent becomes the attachment parent.
func (m *Image) Mock(args ...any) (any, error) {
	if len(args) == 0 && m.mockedID != 0 {
		return m, nil
	}

	var parent int64
	if len(args) > 0 {
		switch a := args[0].(type) {
		case int:
			parent = int64(a)
		case int64:
			parent = a
		default:
			pa, err := postArgs(a)
			if err != nil {
				return nil, err
			}
			parent = pa.Parent
		}
	}

	if err := m.upload(parent); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Image) upload(parent int64) error {
	f, err := m.fixtures()
	if err != nil {
		return err
	}

	file := m.file
	if file == "" {
		if file, err = sampleImage(); err != nil {
			return err
		}
	}

	restore := m.env.Hooks.Suspend()
	defer restore()

	id, err := f.UploadObject(file, parent)
	if err != nil {
		return err
	}
	m.mockedID = id
	m.ids = append(m.ids, id)
	return nil
}

// Get returns the current attachment, uploading one first if needed
func (m *Image) Get() (*cms.Post, error) {
	if m.mockedID == 0 {
		if err := m.upload(0); err != nil {
			return nil, err
		}
	}
	return m.env.Store.GetPost(m.mockedID), nil
}

// Revision saves a revision of the current attachment and returns it
func (m *Image) Revision() (*cms.Post, error) {
	post, err := m.Get()
	if err != nil {
		return nil, err
	}
	id, err := m.env.Store.SaveRevision(post.ID)
	if err != nil {
		return nil, err
	}
	m.ids = append(m.ids, id)
	return m.env.Store.GetPost(id), nil
}

// Dispatch implements mocker.Dispatcher. Images have no query flags and no
// AMP endpoint.
func (m *Image) Dispatch(method string, args ...any) (any, error) {
	switch method {
	case "get":
		return m.Get()
	case "revision":
		return m.Revision()
	}
	return nil, mocker.UnknownMethod(ServiceImage, method)
}
