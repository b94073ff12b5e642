// Command segdetect runs the instance-segmentation pipeline over one image
// or over every image in a directory, prints the detections as JSON, and
// optionally writes each mask as a grayscale PNG.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/microwink/microwink-go/images"
	"github.com/microwink/microwink-go/inference"
	"github.com/microwink/microwink-go/profiler"
	"github.com/microwink/microwink-go/seg"
)

// detectionJSON is the output record for one detection.
type detectionJSON struct {
	Box   [4]float32 `json:"box"`
	Score float32    `json:"score"`
	Mask  string     `json:"mask,omitempty"`
}

// imageJSON is the output record for one processed image.
type imageJSON struct {
	Path       string          `json:"path"`
	Detections []detectionJSON `json:"detections"`
}

func main() {
	var (
		modelPath  string
		imagePath  string
		confidence float64
		iou        float64
		maskDir    string
		useCUDA    bool
		useCoreML  bool
		profile    bool
	)
	flag.StringVar(&modelPath, "model", "", "Path to the segmentation ONNX model")
	flag.StringVar(&imagePath, "image", "", "Path to an image file or a directory of images")
	flag.Float64Var(&confidence, "confidence", 0.6, "Minimum detection confidence (exclusive)")
	flag.Float64Var(&iou, "iou", 0.5, "Maximum allowed box overlap during suppression")
	flag.StringVar(&maskDir, "masks", "", "Directory to write grayscale mask PNGs into (optional)")
	flag.BoolVar(&useCUDA, "cuda", false, "Run inference on the CUDA execution provider")
	flag.BoolVar(&useCoreML, "coreml", false, "Run inference on the CoreML execution provider")
	flag.BoolVar(&profile, "profile", false, "Log per-stage timing statistics after the run")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if modelPath == "" || imagePath == "" {
		logger.Error("both -model and -image are required")
		flag.Usage()
		os.Exit(2)
	}

	var providers []inference.ProviderOption
	if useCUDA {
		providers = append(providers, inference.WithCUDA())
	}
	if useCoreML {
		providers = append(providers, inference.WithCoreML())
	}

	model, err := seg.FromPath(modelPath, providers...)
	if err != nil {
		logger.Fatal("loading model", zap.String("model", modelPath), zap.Error(err))
	}

	threshold := seg.Threshold{Confidence: float32(confidence), IoU: float32(iou)}
	logger.Info("model ready",
		zap.String("model", modelPath),
		zap.Float32("confidence", threshold.Confidence),
		zap.Float32("iou", threshold.IoU))

	prof := profiler.New()

	loadDone := prof.Track("load")
	inputs, err := collectInputs(imagePath)
	loadDone()
	if err != nil {
		logger.Fatal("loading input", zap.String("image", imagePath), zap.Error(err))
	}

	if maskDir != "" {
		if err := os.MkdirAll(maskDir, 0o755); err != nil {
			logger.Fatal("creating mask directory", zap.String("dir", maskDir), zap.Error(err))
		}
	}

	report := make([]imageJSON, 0, len(inputs))
	for _, input := range inputs {
		applyDone := prof.Track("segment")
		results, err := model.Apply(input.Image, threshold)
		applyDone()
		if err != nil {
			logger.Fatal("segmentation failed", zap.String("image", input.Path), zap.Error(err))
		}
		logger.Info("processed image",
			zap.String("image", input.Path),
			zap.Int("detections", len(results)))

		entry := imageJSON{Path: input.Path, Detections: make([]detectionJSON, 0, len(results))}
		for i, r := range results {
			d := detectionJSON{
				Box:   [4]float32{r.Box.X1, r.Box.Y1, r.Box.X2, r.Box.Y2},
				Score: r.Score,
			}
			if maskDir != "" {
				maskPath := maskFileName(maskDir, input.Path, i)
				maskDone := prof.Track("write-masks")
				err := writeMaskPNG(maskPath, r.Mask)
				maskDone()
				if err != nil {
					logger.Fatal("writing mask", zap.String("path", maskPath), zap.Error(err))
				}
				d.Mask = maskPath
			}
			entry.Detections = append(entry.Detections, d)
		}
		report = append(report, entry)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("encoding report", zap.Error(err))
	}

	if profile {
		for _, s := range prof.Stats() {
			logger.Info("stage timing",
				zap.String("stage", s.Name),
				zap.Int64("count", s.Count),
				zap.Duration("total", s.Total),
				zap.Duration("mean", s.Mean()),
				zap.Duration("min", s.Min),
				zap.Duration("max", s.Max))
		}
	}
}

// collectInputs loads either the single image at path or, when path is a
// directory, every supported image in it.
func collectInputs(path string) ([]images.ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return images.LoadDirectoryImages(path)
	}
	img, err := images.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return []images.ImageFile{{Path: path, Image: img}}, nil
}

// maskFileName derives a mask output path from the source image name and the
// detection index.
func maskFileName(dir, imagePath string, index int) string {
	base := filepath.Base(imagePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s_mask_%d.png", base, index))
}

// writeMaskPNG renders mask confidences into an 8-bit grayscale PNG.
func writeMaskPNG(path string, mask seg.Mask) error {
	img := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			img.Pix[y*img.Stride+x] = uint8(mask.At(x, y)*255 + 0.5)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
