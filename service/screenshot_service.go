package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tieubaoca/context-curator/database"
	"github.com/tieubaoca/context-curator/types"
	"github.com/tieubaoca/context-curator/utils"
)

// TextRecognizer extracts the text visible in an image file.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, imagePath string) (string, error)
}

// TesseractOCR shells out to the tesseract binary.
type TesseractOCR struct {
	Language string
}

func (o TesseractOCR) RecognizeText(ctx context.Context, imagePath string) (string, error) {
	lang := o.Language
	if lang == "" {
		lang = "eng"
	}
	cmd := exec.CommandContext(ctx, "tesseract",
		imagePath,
		"stdout",
		"-l", lang,
		"--oem", "3", // LSTM engine
		"--psm", "3", // automatic page segmentation
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to run tesseract: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}

type ScreenshotConfig struct {
	UploadDir  string
	Collection string
	// Curate runs the passive flow on the composed page document.
	Curate bool
}

// ScreenshotService stores captured browser pages as documents.
type ScreenshotService struct {
	describer ImageDescriber
	ocr       TextRecognizer
	store     database.DocumentStore
	curator   *CuratorService
	journal   Journal
	config    ScreenshotConfig
	now       func() time.Time
}

// NewScreenshotService builds the ingester. ocr, curator and journal may be nil.
func NewScreenshotService(
	describer ImageDescriber,
	ocr TextRecognizer,
	store database.DocumentStore,
	curator *CuratorService,
	journal Journal,
	config ScreenshotConfig,
) *ScreenshotService {
	if config.UploadDir == "" {
		config.UploadDir = "screenshots"
	}
	if config.Collection == "" {
		config.Collection = "screenshots_collection"
	}
	return &ScreenshotService{
		describer: describer,
		ocr:       ocr,
		store:     store,
		curator:   curator,
		journal:   journal,
		config:    config,
		now:       time.Now,
	}
}

// Ingest saves the image, describes it, and stores the page document under
// id screenshot_<timestamp>. OCR failures are logged and leave the extracted
// text empty.
func (s *ScreenshotService) Ingest(ctx context.Context, shot types.Screenshot) (*types.ScreenshotResult, error) {
	if len(shot.Image) == 0 {
		return nil, types.ErrEmptyContext
	}
	mimeType := shot.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(shot.Image)
	}
	now := s.now()
	timestamp := now.Format("20060102_150405")
	filename := fmt.Sprintf("screenshot_%s%s", timestamp, imageExtension(mimeType))

	path, err := utils.SaveFile(s.config.UploadDir, filename, shot.Image)
	if err != nil {
		return nil, err
	}
	log.Printf("Saved screenshot to %s", path)

	var extracted string
	if s.ocr != nil {
		extracted, err = s.ocr.RecognizeText(ctx, path)
		if err != nil {
			log.Printf("Warning: OCR failed for %s: %v", path, err)
			extracted = ""
		}
		log.Printf("Extracted text length: %d", len(extracted))
	}

	description, err := s.describer.DescribeImage(ctx, shot.Image, mimeType)
	if err != nil {
		return nil, err
	}
	log.Printf("Image description length: %d", len(description))

	content := pageContent(shot, description, extracted)
	topic := strings.TrimSpace(shot.PageTitle)
	if topic == "" {
		topic = shot.PageURL
	}
	doc := types.Document{
		ID:      "screenshot_" + timestamp,
		Content: content,
		Metadata: types.Metadata{
			types.MetadataSource: "screenshot",
			types.MetadataTopic:  topic,
			"url":                shot.PageURL,
			"title":              shot.PageTitle,
			"timestamp":          timestamp,
			"filename":           filename,
		},
	}
	ids, err := s.store.Add(ctx, s.config.Collection, []types.Document{doc})
	if err != nil {
		return nil, err
	}
	result := &types.ScreenshotResult{
		DocumentID:       ids[0],
		Filename:         filename,
		ExtractedText:    extracted,
		ImageDescription: description,
	}
	s.record(ctx, content, topic, ids)

	if s.config.Curate && s.curator != nil {
		curated, err := s.curator.Ingest(ctx, content)
		if err != nil {
			return result, fmt.Errorf("screenshot %s stored but curation failed: %w", doc.ID, err)
		}
		result.CuratedIDs = curated
	}
	return result, nil
}

func pageContent(shot types.Screenshot, description, extracted string) string {
	return fmt.Sprintf("Page Title: %s\nURL: %s\n\nImage Description:\n%s\n\nExtracted Text:\n%s",
		shot.PageTitle, shot.PageURL, strings.TrimSpace(description), extracted)
}

func (s *ScreenshotService) record(ctx context.Context, input, topic string, ids []string) {
	if s.journal == nil {
		return
	}
	run := types.CurationRun{
		ID:          uuid.NewString(),
		Flow:        types.FlowScreenshot,
		Input:       input,
		Topic:       topic,
		Collection:  s.config.Collection,
		DocumentIDs: ids,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.journal.Record(ctx, run); err != nil {
		log.Printf("Error recording screenshot run: %v", err)
	}
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
}

// imageExtension picks the file extension for a screenshot, defaulting to .png.
func imageExtension(mimeType string) string {
	mediaType, _, _ := strings.Cut(mimeType, ";")
	if ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(mediaType))]; ok {
		return ext
	}
	return ".png"
}
