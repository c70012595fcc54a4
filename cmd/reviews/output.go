package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/parser"
	"github.com/aluiziolira/go-scrape-reviews/pipeline"
)

// outputOpener returns the OpenFunc used once page 1 has named the target.
// The paths of the files it creates are appended to files.
func outputOpener(cfg *config.Config, files *[]string) pipeline.OpenFunc {
	return func(target models.Target) (pipeline.OutputWriter, error) {
		path := cfg.OutputFile
		if path == "" {
			path = filepath.Join(cfg.OutputDir, parser.OutputName(target.Name, extension(cfg.OutputFormat)))
		}
		writer, err := createWriter(cfg.OutputFormat, path)
		if err != nil {
			return nil, err
		}
		*files = append(*files, path)
		if cfg.OutputFormat == "dual" {
			*files = append(*files, jsonCompanion(path))
		}
		return writer, nil
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		return pipeline.NewDualWriter(filename, jsonCompanion(filename))
	case "sqlite":
		return pipeline.NewSQLiteWriter(filename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func extension(format string) string {
	switch format {
	case "json":
		return ".jsonl"
	case "sqlite":
		return ".db"
	default:
		return ".csv"
	}
}

func jsonCompanion(filename string) string {
	return strings.TrimSuffix(filename, ".csv") + ".jsonl"
}

func profilePath(cfg *config.Config, profile *models.Profile) string {
	if cfg.OutputFile != "" {
		return cfg.OutputFile
	}
	name := strings.TrimSuffix(parser.OutputName(profile.Name, ""), "_reviews")
	return filepath.Join(cfg.OutputDir, name+"_main_page.csv")
}

// targetURL takes the url from args, or prompts for it on stdin.
func targetURL(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	return promptURL(os.Stdin, os.Stdout, prompt)
}

func promptURL(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read url: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no url given")
	}
	return line, nil
}
