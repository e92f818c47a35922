package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/tieubaoca/context-curator/types"
)

var DefaultChunkConfig = types.ChunkConfig{
	MaxChunkSize: 4000,
	OverlapSize:  200,
}

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
	// Control characters and glyphs left behind by PDF text extraction.
	textReplacer = strings.NewReplacer(
		"\u0000", "",
		"\ufffd", "",
		"\u001b", "",
		"\r", "",
		"\f", "\n",
		"\uf8ff", "",
		"\u2021", "",
		"\u2020", "",
	)
)

// ChunkService splits long text into overlapping, sentence-bounded chunks
// small enough to be curated one at a time.
type ChunkService struct {
	maxChunkSize int
	overlapSize  int
}

func NewChunkService(config types.ChunkConfig) *ChunkService {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkConfig.MaxChunkSize
	}
	if config.OverlapSize < 0 || config.OverlapSize >= config.MaxChunkSize {
		config.OverlapSize = 0
	}
	return &ChunkService{
		maxChunkSize: config.MaxChunkSize,
		overlapSize:  config.OverlapSize,
	}
}

// ExtractText reads a text file, or the text layer of a PDF. PDFs the
// pure Go reader cannot decode fall back to pdftotext.
func (s *ChunkService) ExtractText(ctx context.Context, path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	}
	text, err := readPDF(path)
	if err != nil || text == "" {
		log.Printf("Falling back to pdftotext for %s: %v", path, err)
		text, err = runPdftotext(ctx, path)
		if err != nil {
			return "", err
		}
	}
	if text == "" {
		return "", fmt.Errorf("got no text from %s", path)
	}
	return text, nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read text from %s: %w", path, err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read text from %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func runPdftotext(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-enc", "UTF-8", "-nopgbrk", path, "-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("error executing pdftotext on %s: %w", path, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// Split cleans text and cuts it into chunks. Cuts prefer sentence ends, then
// word boundaries; consecutive chunks share up to overlapSize bytes.
func (s *ChunkService) Split(source, text string) []types.DocumentChunk {
	text = s.cleanText(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.maxChunkSize {
		return []types.DocumentChunk{{Content: text, Index: 0, Source: source}}
	}

	var chunks []types.DocumentChunk
	add := func(content string) {
		if content = strings.TrimSpace(content); content != "" {
			chunks = append(chunks, types.DocumentChunk{Content: content, Index: len(chunks), Source: source})
		}
	}

	pos := 0
	for pos < len(text) {
		end := pos + s.maxChunkSize
		if end >= len(text) {
			add(text[pos:])
			break
		}

		// Find nearest sentence end
		cut := end
		for i := end - 1; i > pos; i-- {
			if text[i] == '.' || text[i] == '?' || text[i] == '!' {
				cut = i + 1
				break
			}
		}
		// If no sentence end found, use word boundary
		if cut == end {
			for i := end; i > pos; i-- {
				if text[i] == ' ' || text[i] == '\n' {
					cut = i
					break
				}
			}
		}
		for cut > pos && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == pos {
			cut = end
			for cut < len(text) && !utf8.RuneStart(text[cut]) {
				cut++
			}
		}
		add(text[pos:cut])

		// Start the next chunk overlapSize back, at a word boundary.
		next := cut
		if s.overlapSize > 0 && cut-s.overlapSize > pos {
			back := cut - s.overlapSize
			if i := strings.IndexAny(text[back:cut], " \n"); i >= 0 {
				next = back + i + 1
			}
		}
		pos = next
	}
	return chunks
}

func (s *ChunkService) cleanText(text string) string {
	cleaned := textReplacer.Replace(text)
	cleaned = spaceRun.ReplaceAllString(cleaned, " ")
	cleaned = newlineRun.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
