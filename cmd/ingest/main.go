// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command ingest loads PDF documents into the knowledge index.
//
// Each PDF is extracted, normalized, split into overlapping line
// chunks, embedded, and upserted into Pinecone under the assistant's
// namespace. Re-ingesting the same file overwrites its chunks, since
// chunk ids derive from the file name.
//
// Usage:
//
//	go run ./cmd/ingest document.pdf
//	go run ./cmd/ingest --namespace carely ./docs/*.pdf
//	go run ./cmd/ingest --chunk-size 12 --stride 4 handbook.pdf
//
// Required environment:
//
//	OPENAI_API_KEY       OpenAI API key for embeddings
//	PINECONE_API_KEY     Pinecone API key
//	PINECONE_INDEX_HOST  Pinecone index host
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carelyhealth/carely/services/assistant/ingest"
	"github.com/carelyhealth/carely/services/llm"
	"github.com/carelyhealth/carely/services/pinecone"
)

var (
	namespaceFlag  string
	chunkSizeFlag  int
	strideFlag     int
	maxRetriesFlag int
	retryDelayFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "ingest [files or directories]",
	Short: "Ingest PDF documents into the Carely knowledge index",
	Long: `Ingest extracts text from PDF documents, normalizes and chunks it,
embeds each chunk, and upserts the vectors into Pinecone so the
assistant can ground its answers on them.

Directories are scanned non-recursively for .pdf files. Re-running
ingest on a file replaces its previously indexed chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&namespaceFlag, "namespace", ingest.DefaultNamespace, "Pinecone namespace to write into")
	rootCmd.Flags().IntVar(&chunkSizeFlag, "chunk-size", ingest.DefaultChunkSize, "Lines per chunk")
	rootCmd.Flags().IntVar(&strideFlag, "stride", ingest.DefaultStride, "Lines of overlap carried from the previous chunk")
	rootCmd.Flags().IntVar(&maxRetriesFlag, "max-retries", 0, "Embedding retry limit, 0 retries forever")
	rootCmd.Flags().DurationVar(&retryDelayFlag, "retry-delay", ingest.DefaultRetryDelay, "Delay between embedding retries")
}

func runIngest(cmd *cobra.Command, args []string) error {
	paths, err := collectPDFs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found in %v", args)
	}

	embedder, err := llm.NewOpenAIClient()
	if err != nil {
		return err
	}
	index, err := pinecone.NewClient()
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(embedder, index, namespaceFlag, chunkSizeFlag, strideFlag, slog.Default())
	pipeline.MaxRetries = maxRetriesFlag
	pipeline.RetryDelay = retryDelayFlag

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var failed int
	for _, path := range paths {
		fmt.Printf("Ingesting %s\n", path)
		count, err := pipeline.Ingest(ctx, path)
		if err != nil {
			failed++
			slog.Error("Ingestion failed",
				slog.String("path", path),
				slog.Int("chunks_upserted", count),
				slog.String("error", err.Error()))
			if ctx.Err() != nil {
				return fmt.Errorf("ingestion interrupted after %d file(s)", failed)
			}
			continue
		}
		fmt.Printf("  upserted %d chunk(s) as %q\n", count, ingest.DocumentID(path))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(paths))
	}
	fmt.Printf("Done. %d file(s) ingested.\n", len(paths))
	return nil
}

// collectPDFs expands the given files and directories into a list of
// PDF paths. Directories are scanned one level deep.
func collectPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
