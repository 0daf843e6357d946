package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/index"
)

// maxChunkBytes bounds one ingested chunk. Paragraphs are grouped up to
// the bound; an oversized paragraph is split on sentence boundaries.
const maxChunkBytes = 1200

func newIngestCmd() *cobra.Command {
	var sourceID string

	cmd := &cobra.Command{
		Use:   "ingest <course> <files...>",
		Short: "Ingest text files into a course's search index",
		Long: `Split plain-text or markdown files into passages and add them to the
hybrid index under the given course. Re-ingesting the same content is a
no-op: passages are fingerprinted by source and normalized text.

Examples:
  lectern ingest biology notes/photosynthesis.txt notes/respiration.txt
  lectern ingest calculus lecture3.md --source "lecture-3"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			course := args[0]
			files := args[1:]

			if sourceID != "" && len(files) > 1 {
				return fmt.Errorf("--source applies to a single file")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			bar := progressbar.NewOptions(len(files),
				progressbar.OptionSetDescription("  Ingesting"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)

			var added, duplicate, skipped, failed int
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "  Warning: %v\n", err)
					failed++
					_ = bar.Add(1)
					continue
				}

				src := sourceID
				if src == "" {
					src = sourceFromPath(path)
				}

				raw := splitChunks(src, course, string(data))
				report, err := a.index.Add(context.Background(), raw)
				if err != nil {
					fmt.Fprintf(os.Stderr, "  Warning: %s: %v\n", path, err)
					failed++
					_ = bar.Add(1)
					continue
				}
				added += report.Added
				duplicate += report.Duplicate
				skipped += report.Skipped

				// Snapshot per file so a crash mid-batch keeps what
				// was already committed.
				if report.Added > 0 {
					if err := a.saveIndex(); err != nil {
						return fmt.Errorf("save index: %w", err)
					}
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			fmt.Printf("%d passages added, %d duplicates, %d skipped", added, duplicate, skipped)
			if failed > 0 {
				fmt.Printf(", %d files failed", failed)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceID, "source", "", "source identifier override (default: file name)")

	return cmd
}

// sourceFromPath derives a stable source id from a file path.
func sourceFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitChunks breaks a document into ordered passages. Blank lines
// delimit paragraphs; consecutive paragraphs are grouped until the byte
// bound, so short lines (headings, list items) travel with their context.
func splitChunks(sourceID, course, text string) []index.RawChunk {
	paragraphs := splitParagraphs(text)

	var out []index.RawChunk
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		out = append(out, index.RawChunk{
			SourceID: sourceID,
			Course:   course,
			Text:     cur.String(),
			Ordinal:  len(out),
		})
		cur.Reset()
	}

	for _, p := range paragraphs {
		for _, piece := range splitOversized(p, maxChunkBytes) {
			if cur.Len() > 0 && cur.Len()+len(piece)+2 > maxChunkBytes {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(piece)
		}
	}
	flush()
	return out
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitOversized splits a paragraph longer than bound on sentence ends,
// falling back to a hard cut for unbroken runs.
func splitOversized(p string, bound int) []string {
	if len(p) <= bound {
		return []string{p}
	}
	var out []string
	var cur strings.Builder
	for _, sentence := range splitSentences(p) {
		for len(sentence) > bound {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			// Back the cut off to a rune boundary so a multibyte
			// character is never split.
			cut := bound
			for cut > 0 && !utf8.RuneStart(sentence[cut]) {
				cut--
			}
			if cut == 0 {
				break
			}
			out = append(out, sentence[:cut])
			sentence = sentence[cut:]
		}
		if cur.Len() > 0 && cur.Len()+len(sentence)+1 > bound {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(sentence)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func splitSentences(p string) []string {
	var out []string
	start := 0
	runes := []rune(p)
	for i, r := range runes {
		if (r == '.' || r == '?' || r == '!') && (i+1 == len(runes) || runes[i+1] == ' ') {
			s := strings.TrimSpace(string(runes[start : i+1]))
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}
