// Package annotate draws detection boxes onto capture frames and writes the
// derived artifact next to the source image.
package annotate

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/user/framerelay/internal/types"
)

const (
	jpegQuality  = 92
	boxThickness = 7
)

var annSuffixRe = regexp.MustCompile(`(?i)_ann$`)

// ArtifactPath returns where the annotated artifact for an image lives:
// <stem>_ann.jpg in the same directory. An existing _ann suffix is stripped
// first so re-annotating an artifact never stacks suffixes.
func ArtifactPath(imagePath string) string {
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	stem = annSuffixRe.ReplaceAllString(stem, "")
	return filepath.Join(filepath.Dir(imagePath), stem+"_ann.jpg")
}

// Writer produces annotated artifacts. It implements types.Annotator.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

var _ types.Annotator = (*Writer)(nil)

// WriteAnnotated writes the artifact for imagePath and returns its path.
// When rendered is non-empty those bytes are written verbatim; otherwise the
// source frame is decoded and the detections drawn locally. An empty result
// still yields an artifact so downstream consumers always find one.
func (w *Writer) WriteAnnotated(imagePath string, result *types.DetectionResult, rendered []byte) (string, error) {
	outPath := ArtifactPath(imagePath)

	if len(rendered) > 0 {
		if err := writeAtomic(outPath, rendered); err != nil {
			return "", err
		}
		return outPath, nil
	}

	src, err := imaging.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", imagePath, err)
	}
	img := imaging.Clone(src)

	if result != nil {
		drawDetections(img, result.Detections)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	if err := writeAtomic(outPath, buf.Bytes()); err != nil {
		return "", err
	}
	return outPath, nil
}

func drawDetections(img *image.NRGBA, detections []types.Detection) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	for _, det := range detections {
		x1, y1, x2, y2 := scaleBBox(det.BBox, width, height)
		x1 = clamp(x1, 0, width-1)
		x2 = clamp(x2, 0, width-1)
		y1 = clamp(y1, 0, height-1)
		y2 = clamp(y2, 0, height-1)
		if x2 <= x1 || y2 <= y1 {
			slog.Debug("skipping degenerate box", "label", det.Label, "bbox", det.BBox)
			continue
		}

		c := colorForLabel(det.Label)
		drawRect(img, x1, y1, x2, y2, c)
		drawLabel(img, x1, y1, labelText(det), c)
	}
}

// scaleBBox converts a box to pixel coordinates. Boxes with every coordinate
// in [0,1] are treated as normalized and scaled to the frame size.
func scaleBBox(b [4]float64, width, height int) (x1, y1, x2, y2 int) {
	fx1, fy1, fx2, fy2 := b[0], b[1], b[2], b[3]
	if normalized(fx1) && normalized(fy1) && normalized(fx2) && normalized(fy2) {
		fx1 *= float64(width)
		fx2 *= float64(width)
		fy1 *= float64(height)
		fy2 *= float64(height)
	}
	return round(fx1), round(fy1), round(fx2), round(fy2)
}

func normalized(v float64) bool {
	return v >= 0.0 && v <= 1.0
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// colorForLabel derives a stable color from the label so the same object
// class is drawn the same way in every frame.
func colorForLabel(label string) color.NRGBA {
	h := md5.Sum([]byte(label))
	return color.NRGBA{R: h[0], G: h[1], B: h[2], A: 255}
}

func labelText(det types.Detection) string {
	if det.Score > 0 {
		return fmt.Sprintf("%s %.2f", det.Label, det.Score)
	}
	return det.Label
}

func fillRect(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	r := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawRect draws the box border as four filled bars.
func drawRect(img *image.NRGBA, x1, y1, x2, y2 int, c color.NRGBA) {
	t := boxThickness
	fillRect(img, x1, y1, x2+1, y1+t, c)
	fillRect(img, x1, y2+1-t, x2+1, y2+1, c)
	fillRect(img, x1, y1, x1+t, y2+1, c)
	fillRect(img, x2+1-t, y1, x2+1, y2+1, c)
}

// drawLabel paints a filled background above the box corner and the label
// text in white on top of it.
func drawLabel(img *image.NRGBA, x, y int, text string, c color.NRGBA) {
	face := basicfont.Face7x13
	tw := font.MeasureString(face, text).Ceil()
	th := face.Metrics().Height.Ceil()

	fillRect(img, x, max(0, y-th-8), x+tw+6, y, c)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x+3, y-4),
	}
	d.DrawString(text)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}
