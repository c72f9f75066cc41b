package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/processor"
)

var decodeOutput string

var decodeCmd = &cobra.Command{
	Use:   "decode [files...]",
	Short: "Decode Finvoice files",
	Long: `Decode one or more Finvoice 3.0 files into the document model.

Transmission payloads with a SOAP envelope in front of the Finvoice body are
accepted. Files declared as ISO-8859-15 are converted. Consistency findings
(due date before invoice date, totals that do not add up) are reported as warnings.

Examples:
  finvoice-bridge decode invoice.xml
  finvoice-bridge decode received/ -f table
  finvoice-bridge decode *.xml -o documents.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", "", "Output file (default: stdout)")
}

// DecodeResult holds the result of decoding a single file
type DecodeResult struct {
	File     string          `json:"file"`
	Document *model.Document `json:"document,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to decode")
	}
	printVerbose("Found %d files to decode\n", len(files))

	codec := finvoice.NewCodec()
	results := make([]*DecodeResult, 0, len(files))
	for _, file := range files {
		printVerbose("Decoding: %s\n", file)
		result := decodeFile(codec, file)
		if result.Error != "" {
			printVerbose("  Error: %s\n", result.Error)
		}
		results = append(results, result)
	}

	w, err := openOutput(decodeOutput)
	if err != nil {
		return err
	}
	defer w.Close()

	switch outputFormat {
	case "json":
		return writeJSON(w, results)
	case "table":
		return decodeTable(w, results)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", match)
			}
			if !info.IsDir() {
				files = append(files, match)
				continue
			}
			err = filepath.WalkDir(match, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".xml") {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	return files, nil
}

func decodeFile(codec *finvoice.Codec, path string) *DecodeResult {
	result := &DecodeResult{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read file: %v", err)
		return result
	}

	body, err := processor.FinvoiceBody(data)
	if err != nil {
		result.Error = fmt.Sprintf("%v (detected %s)", err, processor.DetectFormat(data))
		return result
	}

	doc, err := codec.Decode(body)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Document = doc
	for _, finding := range model.Validate(doc) {
		result.Warnings = append(result.Warnings, finding.Error())
	}
	return result
}

func decodeTable(w io.Writer, results []*DecodeResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tNUMBER\tDATE\tSELLER\tBUYER\tTOTAL\tWARNINGS")
	fmt.Fprintln(tw, "----\t------\t----\t------\t-----\t-----\t--------")

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\n", r.File, r.Error)
			continue
		}
		d := r.Document
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s %s\t%d\n",
			r.File,
			d.InvoiceNumber,
			d.InvoiceDate,
			d.Seller.Name,
			d.Buyer.Name,
			d.Totals.VatIncluded,
			d.CurrencyCode,
			len(r.Warnings),
		)
	}

	return tw.Flush()
}
