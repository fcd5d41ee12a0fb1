package cocoyolo

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rubenfonseca/fastimage"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp" // Register decoders for image.DecodeConfig.
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageOptions controls how source images are written to the output tree.
type ImageOptions struct {
	// MaxSide is the maximum length of the longer image side. Larger images are downsampled, other
	// images are copied unchanged. Zero copies every image byte for byte.
	MaxSide     int
	JPEGQuality int // The quality for re-encoded JPEGs, [1, 100].
}

// resizeImage resamples the image to match the longer and shorter sides (one may be 0, which
// keeps the aspect ratio).
func resizeImage(img image.Image, longerSide, shorterSide int,
	downsamplingFilter, upsamplingFilter imaging.ResampleFilter) image.Image {

	imgBounds := img.Bounds()
	imgWidth := imgBounds.Dx()
	imgHeight := imgBounds.Dy()

	imgLonger := imgWidth
	imgShorter := imgHeight
	isLandscape := true
	if imgHeight > imgWidth {
		imgLonger = imgHeight
		imgShorter = imgWidth
		isLandscape = false
	}

	// Calculate the target dimensions.
	if longerSide <= 0 {
		longerSide = int(math.Round(float64(shorterSide) * (float64(imgLonger) / float64(imgShorter))))
	} else if shorterSide <= 0 {
		shorterSide = int(math.Round(float64(longerSide) * (float64(imgShorter) / float64(imgLonger))))
	}

	// Select the filter based on the direction of the rescaling operation.
	var filter imaging.ResampleFilter
	if longerSide*shorterSide < imgWidth*imgHeight {
		filter = downsamplingFilter
	} else {
		filter = upsamplingFilter
	}

	if isLandscape {
		return imaging.Resize(img, longerSide, shorterSide, filter)
	}
	return imaging.Resize(img, shorterSide, longerSide, filter) // Portrait.
}

// decodeImageConfig opens the file at path and returns the results of image.DecodeConfig.
func decodeImageConfig(fs afero.Fs, path string) (config image.Config, format string, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()

	return image.DecodeConfig(f)
}

// loadImage reads and decodes the image at path.
func loadImage(fs afero.Fs, path string) (img image.Image, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return imaging.Decode(f)
}

// saveImage encodes img as format and writes it to path.
func saveImage(fs afero.Fs, path string, img image.Image, format imaging.Format,
	jpegQuality int) (err error) {

	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer closeWithErrCheck(f, &err)

	return imaging.Encode(f, img, format, imaging.JPEGQuality(jpegQuality))
}

// writeImage copies the image at src to dst, downsampling it first if it exceeds
// opts.MaxSide. Images in formats that cannot be re-encoded are copied as they are.
func writeImage(fs afero.Fs, src, dst string, opts ImageOptions) error {
	if opts.MaxSide <= 0 {
		return copyFile(fs, src, dst)
	}

	config, _, err := decodeImageConfig(fs, src)
	if err != nil {
		return errors.Wrapf(err, "failed to decode the image metadata of %q", src)
	}
	if config.Width <= opts.MaxSide && config.Height <= opts.MaxSide {
		return copyFile(fs, src, dst)
	}

	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		log.Warn().Str("image", src).Msg("Cannot re-encode this format, copying it unchanged")
		return copyFile(fs, src, dst)
	}

	img, err := loadImage(fs, src)
	if err != nil {
		return errors.Wrapf(err, "failed to decode %q", src)
	}
	img = resizeImage(img, opts.MaxSide, 0, imaging.Box, imaging.Linear)
	if err := saveImage(fs, dst, img, format, opts.JPEGQuality); err != nil {
		return errors.Wrapf(err, "failed to write %q", dst)
	}
	return nil
}

// imageDims reads the pixel dimensions from the header of the image at path.
func imageDims(fs afero.Fs, path string) (width, height int, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	_, size, err := fastimage.DetectImageTypeFromReader(f)
	if err != nil {
		return 0, 0, err
	} else if size == nil {
		return 0, 0, errors.New("unknown image format")
	}
	return int(size.Width), int(size.Height), nil
}

// verifyDims logs a warning for every record whose declared size differs from the size found in
// the image header. Images whose header cannot be read are skipped.
func verifyDims(fs afero.Fs, records []Record) int {
	mismatches := 0
	for _, r := range records {
		src := r.Source()
		w, h, err := imageDims(fs, src.ImagePath)
		if err != nil {
			log.Debug().Err(err).Str("image", src.ImagePath).Msg("Cannot read the image size")
			continue
		}
		if w != src.Width || h != src.Height {
			mismatches++
			log.Warn().Str("image", src.ImagePath).
				Str("declared", dimsString(src.Width, src.Height)).
				Str("actual", dimsString(w, h)).
				Msg("Image size differs from the annotation")
		}
	}
	return mismatches
}

func dimsString(w, h int) string {
	return fmt.Sprintf("%dx%d", w, h)
}
