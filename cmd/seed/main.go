package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
	"github.com/minhokang/evidence-engine/internal/infrastructure/chunking"
	"github.com/minhokang/evidence-engine/internal/infrastructure/llm/ollama"
	"github.com/minhokang/evidence-engine/internal/infrastructure/vector/qdrant"
)

// seed embeds a local text corpus into the vector collection so the
// vector channel has something to answer with before live traffic.
func main() {
	dir := flag.String("dir", "corpus", "directory of .txt/.md files to index")
	chunkSize := flag.Int("chunk-size", 900, "window size in runes")
	overlap := flag.Int("overlap", 150, "window overlap in runes")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(client)
	store := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	splitter := chunking.NewSplitter(*chunkSize, *overlap)

	var items []domain.Evidence
	err := filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		title := strings.TrimSuffix(d.Name(), ext)
		for _, chunk := range splitter.Split(string(raw)) {
			items = append(items, domain.Evidence{
				Title:   title,
				Text:    chunk,
				Channel: domain.ChannelVector,
			})
		}
		return nil
	})
	if err != nil {
		log.Fatalf("walk corpus: %v", err)
	}
	if len(items) == 0 {
		log.Fatalf("no indexable files under %s", *dir)
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		log.Fatalf("embed corpus: %v", err)
	}
	if err := store.IndexEvidence(ctx, items, vectors); err != nil {
		log.Fatalf("index corpus: %v", err)
	}
	log.Printf("indexed %d chunks into %s", len(items), cfg.QdrantCollection)
}
