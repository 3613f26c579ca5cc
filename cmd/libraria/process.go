package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dgallion1/libraria/internal/book"
	"github.com/dgallion1/libraria/internal/config"
	"github.com/dgallion1/libraria/internal/pipeline"
	"github.com/dgallion1/libraria/internal/summarize"
)

var (
	processBookID       string
	processRemote       bool
	processLength       string
	processShowChapters bool
)

var processCmd = &cobra.Command{
	Use:   "process FILE",
	Short: "Process one document into the configured store",
	Long: `Run the full pipeline once for a local file and print the result.

The book ID defaults to the file name without its extension. With the
default memory store nothing outlives the command; set store.driver to
postgres or pathstore to keep the chapters.

Examples:
  libraria process novel.pdf
  libraria process novel.docx --book-id 42 --remote-summary --length detailed
  libraria process notes.md -o json --chapters`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		bookID := processBookID
		if bookID == "" {
			base := filepath.Base(path)
			bookID = strings.TrimSuffix(base, filepath.Ext(base))
		}

		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()
		sum, err := newSummarizer(cfg, log)
		if err != nil {
			return err
		}
		proc := newProcessor(st, sum, cfg, log)

		var bar *progressbar.ProgressBar
		res := proc.ProcessBook(ctx, bookID, book.RawDocument{Filename: filepath.Base(path), Data: data}, pipeline.Options{
			UseRemoteSummary: processRemote,
			SummaryLength:    summarize.ParseLength(processLength),
			OnProgress: func(stage pipeline.Stage, done, total int) {
				if stage != pipeline.StageSummarizing {
					return
				}
				if bar == nil {
					bar = newProgressBar(total, "summarizing")
				}
				bar.Set(done)
			},
		})
		if bar != nil {
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}

		if res.Success {
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", color.GreenString("✓"), bookID, res.Message)
		} else {
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", color.RedString("✗"), bookID, res.Error)
		}

		out := map[string]any{"book_id": bookID, "result": res}
		if processShowChapters && res.Success {
			chapters, err := st.Chapters(ctx, bookID)
			if err != nil {
				return err
			}
			for i := range chapters {
				chapters[i].Content = ""
			}
			out["chapters"] = chapters
		}
		if err := writeOutput(os.Stdout, outputFormat, out); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("processing %s failed", path)
		}
		return nil
	},
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("summaries"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func init() {
	processCmd.Flags().StringVar(&processBookID, "book-id", "", "book ID (default: file name)")
	processCmd.Flags().BoolVar(&processRemote, "remote-summary", false, "use the configured summary provider")
	processCmd.Flags().StringVar(&processLength, "length", "medium", "book summary length: short, medium or detailed")
	processCmd.Flags().BoolVar(&processShowChapters, "chapters", false, "include the chapter list in the output")
}
