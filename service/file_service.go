package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/tieubaoca/context-curator/types"
	"golang.org/x/sync/errgroup"
)

// FileService curates a whole file by running the passive flow on each of
// its chunks.
type FileService struct {
	chunker  *ChunkService
	curator  *CuratorService
	parallel int
}

func NewFileService(chunker *ChunkService, curator *CuratorService, parallel int) *FileService {
	if parallel <= 0 {
		parallel = 1
	}
	return &FileService{
		chunker:  chunker,
		curator:  curator,
		parallel: parallel,
	}
}

// IngestFile returns the ids written for each chunk, in chunk order. The
// first failing chunk cancels the chunks still in flight; chunks that already
// completed stay stored.
func (s *FileService) IngestFile(ctx context.Context, path string) ([][]string, error) {
	text, err := s.chunker.ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}
	chunks := s.chunker.Split(filepath.Base(path), text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", path, types.ErrEmptyContext)
	}
	log.Printf("Ingesting %s in %d chunk(s)", path, len(chunks))

	ids := make([][]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, chunk := range chunks {
		g.Go(func() error {
			written, err := s.curator.Ingest(gctx, chunk.Content)
			if err != nil {
				return fmt.Errorf("chunk %d of %s: %w", chunk.Index, chunk.Source, err)
			}
			ids[chunk.Index] = written
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ids, err
	}
	return ids, nil
}
