package ai

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"
	"trashdetector/internal/config"
	"trashdetector/internal/logger"
	"trashdetector/internal/model"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned for frames with no pixels.
var ErrEmptyFrame = errors.New("frame is empty")

// DetectorService runs a YOLOv8 ONNX model through the OpenCV DNN module.
type DetectorService struct {
	net          gocv.Net
	modelPath    string
	inputSize    int
	confidence   float32
	nmsThreshold float32
	classNames   []string
	thickness    int
	logger       *logger.Logger
	mu           sync.Mutex // gocv.Net is not safe for concurrent Forward calls
}

// NewDetectorService loads the model and sets backend/target preferences.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) (*DetectorService, error) {
	service := &DetectorService{
		modelPath:    cfg.ModelPath,
		inputSize:    cfg.ModelInputSize,
		confidence:   float32(cfg.Confidence),
		nmsThreshold: float32(cfg.NMSThreshold),
		classNames:   cfg.ClassNames,
		thickness:    cfg.BoxThickness,
		logger:       logger,
	}

	if err := service.initializeNet(); err != nil {
		return nil, err
	}
	return service, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	net := gocv.ReadNet(s.modelPath, "")
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.logger.Info("Detection network initialized from %s (input %dx%d, confidence %.2f)",
		s.modelPath, s.inputSize, s.inputSize, s.confidence)
	return nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}

// Detect runs the model on frame and returns boxes at or above the
// confidence threshold after non-maximum suppression.
func (s *DetectorService) Detect(frame gocv.Mat) ([]model.Box, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.net.Empty() {
		return nil, fmt.Errorf("detection network not initialized")
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(s.inputSize, s.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	return s.parseOutput(output, frame.Cols(), frame.Rows())
}

// parseOutput decodes a [1, 4+classes, anchors] tensor. Each anchor column
// holds cx, cy, w, h in model-input pixels followed by per-class scores.
func (s *DetectorService) parseOutput(output gocv.Mat, frameWidth, frameHeight int) ([]model.Box, error) {
	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected model output shape %v", dims)
	}
	attributes, anchors := dims[1], dims[2]

	// [attributes x anchors] -> [anchors x attributes]
	reshaped := output.Reshape(1, attributes)
	defer reshaped.Close()
	rows := gocv.NewMat()
	defer rows.Close()
	gocv.Transpose(reshaped, &rows)

	scaleX := float32(frameWidth) / float32(s.inputSize)
	scaleY := float32(frameHeight) / float32(s.inputSize)

	var rects []image.Rectangle
	var scores []float32
	var classes []int

	for i := 0; i < anchors; i++ {
		row := rows.RowRange(i, i+1)
		classScores := row.ColRange(4, attributes)
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(classScores)
		classScores.Close()

		if maxVal < s.confidence {
			row.Close()
			continue
		}

		cx := rows.GetFloatAt(i, 0) * scaleX
		cy := rows.GetFloatAt(i, 1) * scaleY
		w := rows.GetFloatAt(i, 2) * scaleX
		h := rows.GetFloatAt(i, 3) * scaleY
		row.Close()

		rects = append(rects, image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, maxVal)
		classes = append(classes, maxLoc.X)
	}

	if len(rects) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(rects, scores, s.confidence, s.nmsThreshold)
	boxes := make([]model.Box, 0, len(keep))
	for _, idx := range keep {
		r := rects[idx].Intersect(image.Rect(0, 0, frameWidth, frameHeight))
		boxes = append(boxes, model.Box{
			X1:         float64(r.Min.X),
			Y1:         float64(r.Min.Y),
			X2:         float64(r.Max.X),
			Y2:         float64(r.Max.Y),
			Confidence: float64(scores[idx]),
			Class:      s.className(classes[idx]),
		})
	}

	s.logger.Debug("Detected %d object(s) from %d candidate(s)", len(boxes), len(rects))
	return boxes, nil
}

// Annotate draws each box on a copy of frame and returns it JPEG encoded.
func (s *DetectorService) Annotate(frame gocv.Mat, boxes []model.Box) ([]byte, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	red := color.RGBA{R: 255, G: 0, B: 0, A: 0}

	mat := frame.Clone()
	defer mat.Close()

	for _, box := range boxes {
		if err := gocv.Rectangle(&mat, box.Rect(), red, s.thickness); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		s.logger.Error("Failed to encode image: %v", err)
		return nil, err
	}
	defer buf.Close()
	finalImage := make([]byte, len(buf.GetBytes()))
	copy(finalImage, buf.GetBytes())

	return finalImage, nil
}

// className maps model class IDs to configured labels.
func (s *DetectorService) className(classID int) string {
	if classID >= 0 && classID < len(s.classNames) {
		return s.classNames[classID]
	}
	return fmt.Sprintf("class%d", classID)
}
