package cmd

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/pdf"
	"github.com/rezonia/finvoice-bridge/internal/processor"
)

var infoCmd = &cobra.Command{
	Use:   "info [files...]",
	Short: "Show information about invoice files",
	Long: `Display information about files without decoding them.

Shows:
  - Detected format (Finvoice, transmission payload, upload archive, PDF)
  - Declared character set of XML files
  - Archive entries and PDF page counts

Examples:
  finvoice-bridge info payload.xml
  finvoice-bridge info finvoice.zip image.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	inspector := pdf.NewInspector()
	for _, file := range args {
		printFileInfo(inspector, file)
		fmt.Println()
	}
	return nil
}

func printFileInfo(inspector *pdf.Inspector, filePath string) {
	fmt.Printf("File: %s\n", filePath)

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return
	}
	fmt.Printf("  Size: %d bytes\n", len(data))

	format := processor.DetectFormat(data)
	fmt.Printf("  Format: %s\n", format)

	switch format {
	case processor.FormatFinvoice, processor.FormatEnvelope:
		charset := finvoice.DeclaredCharset(data)
		if charset == "" {
			charset = "UTF-8 (undeclared)"
		}
		fmt.Printf("  Charset: %s\n", charset)
		if _, err := processor.FinvoiceBody(data); err != nil {
			fmt.Printf("  Warning: %v\n", err)
		}

	case processor.FormatBundle:
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			fmt.Printf("  Error: %v\n", err)
			return
		}
		fmt.Printf("  Entries: %d\n", len(zr.File))
		for _, f := range zr.File {
			fmt.Printf("    %s (%d bytes)\n", f.Name, f.UncompressedSize64)
		}

	case processor.FormatPDF:
		info, err := inspector.Inspect(data)
		if err != nil {
			fmt.Printf("  Error: %v\n", err)
			return
		}
		fmt.Printf("  PDF version: %s\n", info.Version)
		fmt.Printf("  Pages: %d\n", info.PageCount)
	}
}
