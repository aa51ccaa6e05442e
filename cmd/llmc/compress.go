package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fumin/llmc/internal/bpe"
	"github.com/fumin/llmc/internal/compressor"
	"github.com/fumin/llmc/internal/model"
	"github.com/fumin/llmc/internal/refmodel"
)

func newCompressCmd() *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Compress text read from a file or stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			text, err := readInput(inPath)
			if err != nil {
				return err
			}

			tok, err := bpe.Load(cfg.Tokenizer.ConfigPath)
			if err != nil {
				return fmt.Errorf("load tokenizer: %w", err)
			}

			c := compressor.New(tok, newModelFactory(tok.VocabSize()))
			var res compressor.Result
			if cfg.Chunking.Enabled {
				c = c.WithChunking(cfg.Chunking.ChunkSize, cfg.Chunking.OverlapSize)
				res, err = c.CompressChunked(text)
			} else {
				res, err = c.Compress(text)
			}
			if err != nil {
				return fmt.Errorf("compress: %w", err)
			}

			slog.Info("compress", "originalSize", res.OriginalSize, "compressedSize", res.CompressedSize,
				"ratio", res.Ratio, "tokenCount", res.TokenCount, "chunkCount", res.ChunkCount)

			return writeOutput(outPath, res.Data)
		},
	}

	cmd.Flags().StringVarP(&inPath, "in", "i", "", "Input text file (default: stdin)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output container file (default: stdout)")
	return cmd
}

// newModelFactory returns a ModelFactory driven by the deterministic
// reference model, since actual neural-backend loading is outside this
// core's scope; a real deployment would substitute a factory here that
// loads weights once and returns independent facade instances per chunk.
func newModelFactory(vocabSize int) compressor.ModelFactory {
	return func() model.Facade { return refmodel.New(vocabSize) }
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
