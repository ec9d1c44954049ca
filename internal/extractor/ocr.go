package extractor

import (
	"bytes"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// Rasterizer renders each page of a document to an image.
type Rasterizer interface {
	Pages(path string) ([]image.Image, error)
}

// Recognizer extracts text from a page image.
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// fitzRasterizer renders PDF pages via MuPDF.
type fitzRasterizer struct{}

func (fitzRasterizer) Pages(path string) ([]image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	images := make([]image.Image, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.Image(n)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// tesseractRecognizer runs tesseract over a single page image.
type tesseractRecognizer struct{}

func (tesseractRecognizer) Recognize(img image.Image) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", err
	}
	return client.Text()
}
