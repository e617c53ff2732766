package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/rickydwilson-dcs/poseproof/pkg/export"
	"github.com/rickydwilson-dcs/poseproof/pkg/pose"
	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

// Processor handles image loading, rendering and saving
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImageFromURL downloads and loads an image from a URL
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, error) {
	// Validate URL
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequest("GET", imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "PoseProof/1.0 (+https://github.com/rickydwilson-dcs/poseproof)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %v", err)
	}

	return p.decodeImageFromBytes(imageData)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	low := strings.ToLower(path)
	if strings.Contains(low, ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
	}
	if _, err := f.Seek(0, 0); err == nil {
		if img, _, err := image.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	reader := bytes.NewReader(data)
	if img, _, err := image.Decode(reader); err == nil {
		return img, nil
	}

	reader = bytes.NewReader(data)
	if img, err := webp.Decode(reader); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Dims returns the pixel dimensions of an image
func (p *Processor) Dims(img image.Image) types.ImageDims {
	b := img.Bounds()
	return types.ImageDims{Width: b.Dx(), Height: b.Dy()}
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// RenderPanel draws an image into one export panel: cover-fit the image
// into the panel, scale the drawn rectangle about the panel's geometric
// center, then translate. The order must match the alignment estimator's
// translation solve; reversing it yields a wrong offset whenever the
// scale is not 1.
func (p *Processor) RenderPanel(img image.Image, target types.ExportTarget, result types.AlignmentResult) (*image.NRGBA, error) {
	dims := p.Dims(img)
	if dims.Width <= 0 || dims.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", dims.Width, dims.Height)
	}
	if target.Width <= 0 || target.Height <= 0 {
		return nil, fmt.Errorf("invalid panel dimensions %dx%d", target.Width, target.Height)
	}

	fit := export.FitFor(dims, target)

	centerX := float64(target.Width) / 2
	centerY := float64(target.Height) / 2

	drawW := fit.DrawWidth * result.Scale
	drawH := fit.DrawHeight * result.Scale
	drawX := centerX + (fit.DrawX-centerX)*result.Scale + result.OffsetX
	drawY := centerY + (fit.DrawY-centerY)*result.Scale + result.OffsetY

	w := int(math.Round(drawW))
	h := int(math.Round(drawH))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("degenerate draw rectangle %dx%d", w, h)
	}

	scaled := imaging.Resize(img, w, h, imaging.Lanczos)

	canvas := imaging.New(target.Width, target.Height, color.NRGBA{0, 0, 0, 255})
	canvas = imaging.Paste(canvas, scaled, image.Pt(int(math.Round(drawX)), int(math.Round(drawY))))

	return canvas, nil
}

// RenderComposite renders the before/after side-by-side composite. The
// before panel is drawn without correction; the after panel gets the
// alignment transform.
func (p *Processor) RenderComposite(before, after image.Image, target types.ExportTarget, result types.AlignmentResult) (*image.NRGBA, error) {
	beforePanel, err := p.RenderPanel(before, target, types.Identity())
	if err != nil {
		return nil, fmt.Errorf("before panel: %w", err)
	}

	afterPanel, err := p.RenderPanel(after, target, result)
	if err != nil {
		return nil, fmt.Errorf("after panel: %w", err)
	}

	composite := imaging.New(target.Width*2, target.Height, color.NRGBA{0, 0, 0, 255})
	composite = imaging.Paste(composite, beforePanel, image.Pt(0, 0))
	composite = imaging.Paste(composite, afterPanel, image.Pt(target.Width, 0))

	return composite, nil
}

// CreateDebugOverlay draws anchor landmark markers onto a rendered panel.
// Markers go through the same export mapping as the estimator, so a
// correct alignment shows before and after markers coinciding.
func (p *Processor) CreateDebugOverlay(panel image.Image, landmarks []types.Landmark, dims types.ImageDims, target types.ExportTarget, anchor pose.Anchor, result types.AlignmentResult, c color.NRGBA) *image.NRGBA {
	nrgba := imaging.Clone(panel)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	cross := int(math.Max(4, 0.01*float64(minInt(w, h)))) // ~1% of min side

	centerX := float64(target.Width) / 2
	centerY := float64(target.Height) / 2

	for _, idx := range pose.AnchorIndices(anchor) {
		if idx < 0 || idx >= len(landmarks) {
			continue
		}
		pt := export.MapLandmark(landmarks[idx], dims, target)
		// Apply the same transform the panel was rendered with
		x := centerX + (pt.X-centerX)*result.Scale + result.OffsetX
		y := centerY + (pt.Y-centerY)*result.Scale + result.OffsetY

		px := int(x + 0.5)
		py := int(y + 0.5)
		drawHLine(nrgba, py, px-cross, px+cross, c)
		drawVLine(nrgba, px, py-cross, py+cross, c)
	}

	// Panel center marker
	ix, iy := w/2, h/2
	blue := color.NRGBA{0, 170, 255, 255}
	drawHLine(nrgba, iy, ix-6, ix+6, blue)
	drawVLine(nrgba, ix, iy-6, iy+6, blue)

	return nrgba
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// Helper functions
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
