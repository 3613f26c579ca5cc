package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "libraria",
	Short: "Book processing service: text extraction, chapters and summaries",
	Long: `Libraria turns uploaded books into chapter records.

For each document it:
  - Extracts plain text (PDF, DOCX, DOC, EPUB, HTML, Markdown, text)
  - Detects chapter headings from styles or line patterns
  - Splits the body into chapters, or fixed-size parts without headings
  - Summarizes the book and each chapter, remotely or locally
  - Replaces the book's stored chapter set in one step`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./libraria.yaml or ~/.libraria/libraria.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.AddCommand(serveCmd, processCmd, configCmd)
}
