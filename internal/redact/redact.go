// Package redact produces the public, PII-safe artifact from an original
// image and its face/plate detections. The original is never modified;
// the redacted copy is written separately and is the only artifact public
// surfaces may reference.
package redact

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Region is a normalized PII bounding box from the detector.
type Region struct {
	X, Y, W, H float64
	Confidence float64
}

// valid reports whether the geometry is usable. Anything else triggers
// the whole-image fail-safe.
func (r Region) valid() bool {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.W > 0 && r.H > 0 && r.X >= 0 && r.Y >= 0 && r.X+r.W <= 1.001 && r.Y+r.H <= 1.001
}

// Redactor blurs PII regions with a safety padding margin.
type Redactor struct {
	// PaddingFraction widens each box by this fraction of its larger side.
	PaddingFraction float64
	// BlurSigma is the gaussian blur strength.
	BlurSigma float64
	// MinRegionConfidence marks the output uncertain when any region's
	// detection confidence falls below it; uncertain redactions force
	// human review before publication.
	MinRegionConfidence float64
}

// Output describes the produced artifact.
type Output struct {
	Image          *image.NRGBA
	Regions        int
	WholeImageBlur bool // fail-safe path was taken
	Uncertain      bool // low-confidence or fail-safe redaction
}

// Redact returns a copy of src with every region blurred and masked. With
// malformed geometry it falls back to blurring the entire image rather
// than ever letting an unredacted region through.
func (r *Redactor) Redact(src image.Image, regions []Region) *Output {
	canvas := imaging.Clone(src)
	if len(regions) == 0 {
		return &Output{Image: canvas}
	}

	bounds := canvas.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	out := &Output{Image: canvas, Regions: len(regions)}
	for _, region := range regions {
		if !region.valid() || width == 0 || height == 0 {
			// Fail safe: geometry we cannot trust means we cannot trust
			// any of the boxes. Blur everything.
			out.Image = r.maskRect(imaging.Clone(src), src.Bounds())
			out.WholeImageBlur = true
			out.Uncertain = true
			return out
		}
		if region.Confidence < r.MinRegionConfidence {
			out.Uncertain = true
		}

		pad := r.PaddingFraction * math.Max(region.W, region.H)
		x0 := int(math.Floor((region.X - pad) * float64(width)))
		y0 := int(math.Floor((region.Y - pad) * float64(height)))
		x1 := int(math.Ceil((region.X + region.W + pad) * float64(width)))
		y1 := int(math.Ceil((region.Y + region.H + pad) * float64(height)))

		rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
		if rect.Empty() {
			out.Image = r.maskRect(imaging.Clone(src), src.Bounds())
			out.WholeImageBlur = true
			out.Uncertain = true
			return out
		}
		out.Image = r.maskRect(out.Image, rect)
	}
	return out
}

// maskRect blurs rect in place and tints it toward the contrasting
// extreme, so the masked region is never byte-identical to the original
// even when the source pixels are uniform.
func (r *Redactor) maskRect(canvas *image.NRGBA, rect image.Rectangle) *image.NRGBA {
	region := imaging.Crop(canvas, rect)
	blurred := imaging.Blur(region, r.BlurSigma)

	// Pick the tint target from mean luminance: dark regions shift toward
	// white, everything else toward black. Either way at least one byte in
	// the region must change.
	var sum, count int64
	for y := 0; y < blurred.Rect.Dy(); y++ {
		row := blurred.Pix[y*blurred.Stride : y*blurred.Stride+blurred.Rect.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			sum += int64(row[x]) + int64(row[x+1]) + int64(row[x+2])
			count += 3
		}
	}
	var target int32
	if count > 0 && sum/count < 64 {
		target = 255
	}

	const tint = 64 // out of 256
	for i := 0; i < len(blurred.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int32(blurred.Pix[i+c])
			blurred.Pix[i+c] = uint8(v + (target-v)*tint/256)
		}
	}

	return imaging.Paste(canvas, blurred, rect.Min)
}

// WriteJPEG persists an artifact, creating the parent directory.
func WriteJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}
