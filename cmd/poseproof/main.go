package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rickydwilson-dcs/poseproof/internal/config"
	"github.com/rickydwilson-dcs/poseproof/internal/utils"
	"github.com/rickydwilson-dcs/poseproof/pkg/align"
	"github.com/rickydwilson-dcs/poseproof/pkg/client"
	"github.com/rickydwilson-dcs/poseproof/pkg/detection"
	"github.com/rickydwilson-dcs/poseproof/pkg/export"
	"github.com/rickydwilson-dcs/poseproof/pkg/llamacpp"
	"github.com/rickydwilson-dcs/poseproof/pkg/ollama"
	"github.com/rickydwilson-dcs/poseproof/pkg/pose"
	"github.com/rickydwilson-dcs/poseproof/pkg/processing"
	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

func main() {
	cfg := config.Default()
	if cfgPath := config.GetConfigPath(); utils.FileExists(cfgPath) {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			log.Fatalf("failed to load %s: %v", cfgPath, err)
		}
		if err := loaded.Validate(); err != nil {
			log.Fatalf("invalid config %s: %v", cfgPath, err)
		}
		cfg = loaded
	}

	var before, after, outDir, model, url, ext, backend string
	var anchorName, ratioName string
	var baseSize, quality int
	var lossless bool
	var sendFmt string
	var sendSize int
	var sendQ int
	var debug bool

	flag.StringVar(&before, "before", "", "before image path or URL (jpg/png/webp)")
	flag.StringVar(&after, "after", "", "after image path or URL (jpg/png/webp)")
	flag.StringVar(&outDir, "out", cfg.Output.Dir, "output directory")
	flag.StringVar(&model, "model", cfg.Detector.Model, "model name")
	flag.StringVar(&backend, "backend", cfg.Detector.Backend, "backend to use: ollama or llamacpp")
	flag.StringVar(&url, "url", cfg.Detector.URL, "server URL (defaults: ollama=http://localhost:11435/api/chat, llamacpp=http://localhost:8080)")

	flag.StringVar(&anchorName, "anchor", cfg.Alignment.DefaultAnchor, "alignment anchor: head|shoulders|hips|full")
	flag.StringVar(&ratioName, "ratio", cfg.Export.Ratio, "panel ratio: square|portrait|landscape|story|instagram")
	flag.IntVar(&baseSize, "size", cfg.Export.BaseSize, "panel base resolution (longer side, px)")

	flag.StringVar(&ext, "ext", cfg.Output.Format, "output format: jpg|png|webp")
	flag.IntVar(&quality, "quality", cfg.Output.Quality, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", cfg.Output.Lossless, "WebP output lossless mode")

	flag.StringVar(&sendFmt, "sendfmt", cfg.Detector.SendFormat, "format sent to the vision model: jpg|png")
	flag.IntVar(&sendSize, "sendsize", cfg.Detector.SendMaxDim, "max long side sent to the vision model (px), 0=original")
	flag.IntVar(&sendQ, "sendq", cfg.Detector.SendQuality, "JPEG quality for image sent to the vision model (1-100)")

	flag.BoolVar(&debug, "debug", false, "create debug overlay images with anchor markers")

	flag.Parse()
	if before == "" || after == "" {
		log.Fatalf("usage: %s -before before.jpg -after after.jpg [-anchor shoulders] [-ratio square] [-backend ollama|llamacpp] [-url server_url] [-out outdir]", filepath.Base(os.Args[0]))
	}

	anchor, err := pose.ParseAnchor(anchorName)
	if err != nil {
		log.Fatal(err)
	}

	ratio, ok := export.ParsePanelRatio(ratioName)
	if !ok {
		log.Fatalf("unknown ratio %q (use square, portrait, landscape, story or instagram)", ratioName)
	}
	target := ratio.PanelSize(baseSize)

	for _, input := range []string{before, after} {
		if utils.FileExists(input) && !utils.IsImageFile(input) {
			log.Fatalf("%s does not look like an image file", input)
		}
	}

	if err := utils.EnsureDir(outDir); err != nil {
		log.Fatal(err)
	}

	// Initialize components
	processor := processing.NewProcessor()

	var poseClient client.PoseClient
	switch backend {
	case "ollama":
		if url == "" {
			url = "http://localhost:11435/api/chat"
		}
		poseClient, err = ollama.NewClient(url)
		if err != nil {
			log.Fatalf("Failed to create Ollama client: %v", err)
		}
	case "llamacpp":
		if url == "" {
			url = "http://localhost:8080"
		}
		poseClient, err = llamacpp.NewClient(url)
		if err != nil {
			log.Fatalf("Failed to create llama.cpp client: %v", err)
		}
	default:
		log.Fatalf("Unknown backend: %s (use 'ollama' or 'llamacpp')\n", backend)
	}

	detector := detection.NewDetector(poseClient)
	estimator := align.NewWithConfig(align.Config{
		VisibilityThreshold: cfg.Alignment.VisibilityThreshold,
		MinScale:            cfg.Alignment.MinScale,
		MaxScale:            cfg.Alignment.MaxScale,
	})

	// Load both input images (from file or URL)
	beforeImg, err := processor.LoadImageSmart(before)
	if err != nil {
		log.Fatal(err)
	}
	afterImg, err := processor.LoadImageSmart(after)
	if err != nil {
		log.Fatal(err)
	}

	beforeDims := processor.Dims(beforeImg)
	afterDims := processor.Dims(afterImg)
	log.Printf("before=%dx%d after=%dx%d panel=%dx%d anchor=%s",
		beforeDims.Width, beforeDims.Height, afterDims.Width, afterDims.Height,
		target.Width, target.Height, anchor)

	// Detect poses
	ctx := context.Background()

	beforeB64, err := processor.PrepareImageForModel(beforeImg, sendFmt, sendSize, sendQ)
	if err != nil {
		log.Fatal(err)
	}
	beforePose, err := detector.DetectPose(ctx, model, beforeB64)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("before pose: %d landmarks conf=%.2f (%s)",
		len(beforePose.Landmarks), beforePose.Confidence, beforePose.Description)

	afterB64, err := processor.PrepareImageForModel(afterImg, sendFmt, sendSize, sendQ)
	if err != nil {
		log.Fatal(err)
	}
	afterPose, err := detector.DetectPose(ctx, model, afterB64)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("after pose: %d landmarks conf=%.2f (%s)",
		len(afterPose.Landmarks), afterPose.Confidence, afterPose.Description)

	// Compute alignment
	result := estimator.ComputeAlignment(beforePose.Landmarks, afterPose.Landmarks,
		beforeDims, afterDims, target, anchor)
	log.Printf("alignment: scale=%.4f offset=(%.1f, %.1f)", result.Scale, result.OffsetX, result.OffsetY)

	// Render and save the composite
	composite, err := processor.RenderComposite(beforeImg, afterImg, target, result)
	if err != nil {
		log.Fatal(err)
	}

	compositePath := filepath.Join(outDir, fmt.Sprintf("composite_%s_%s.%s", ratio.Name, anchor, strings.ToLower(ext)))
	if err := processor.SaveImage(composite, compositePath, ext, quality, lossless); err != nil {
		log.Fatalf("save %s failed: %v", compositePath, err)
	}
	log.Printf("wrote %s", compositePath)

	// Debug overlays: anchor markers on each panel through the same
	// transform the renderer used
	if debug {
		green := color.NRGBA{0, 255, 0, 255}
		red := color.NRGBA{255, 0, 0, 255}

		beforePanel, err := processor.RenderPanel(beforeImg, target, types.Identity())
		if err == nil {
			dbg := processor.CreateDebugOverlay(beforePanel, beforePose.Landmarks, beforeDims, target, anchor, types.Identity(), green)
			dbgPath := utils.GenerateOutputFilename(before, outDir, "debug_before_", "", "png")
			if err := processor.SaveImage(dbg, dbgPath, "png", quality, false); err != nil {
				log.Printf("debug save failed: %v", err)
			} else {
				log.Printf("wrote %s", dbgPath)
			}
		}

		afterPanel, err := processor.RenderPanel(afterImg, target, result)
		if err == nil {
			dbg := processor.CreateDebugOverlay(afterPanel, afterPose.Landmarks, afterDims, target, anchor, result, red)
			dbgPath := utils.GenerateOutputFilename(after, outDir, "debug_after_", "", "png")
			if err := processor.SaveImage(dbg, dbgPath, "png", quality, false); err != nil {
				log.Printf("debug save failed: %v", err)
			} else {
				log.Printf("wrote %s", dbgPath)
			}
		}
	}

	// Save raw detection + alignment JSON
	out := map[string]any{
		"before":    beforePose,
		"after":     afterPose,
		"alignment": result,
	}
	js, _ := json.MarshalIndent(out, "", "  ")
	_ = os.WriteFile(filepath.Join(outDir, "alignment.json"), js, 0o644)
}
