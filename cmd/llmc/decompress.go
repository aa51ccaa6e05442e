package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fumin/llmc/internal/bpe"
	"github.com/fumin/llmc/internal/compressor"
)

func newDecompressCmd() *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "decompress",
		Short: "Decompress a container read from a file or stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			data, err := readBinaryInput(inPath)
			if err != nil {
				return err
			}

			tok, err := bpe.Load(cfg.Tokenizer.ConfigPath)
			if err != nil {
				return fmt.Errorf("load tokenizer: %w", err)
			}

			c := compressor.New(tok, newModelFactory(tok.VocabSize()))
			workers := cfg.Chunking.Workers
			if workers <= 0 {
				workers = runtime.NumCPU()
			}
			if !cfg.Chunking.Parallel {
				workers = 1
			}
			text, err := c.DecompressWithWorkers(data, workers)
			if err != nil {
				return fmt.Errorf("decompress: %w", err)
			}

			return writeOutput(outPath, []byte(text))
		},
	}

	cmd.Flags().StringVarP(&inPath, "in", "i", "", "Input container file (default: stdin)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output text file (default: stdout)")
	return cmd
}

func readBinaryInput(path string) ([]byte, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
