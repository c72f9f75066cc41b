package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rezonia/finvoice-bridge/internal/bundle"
	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/reference"
)

var (
	encodeOutput      string
	encodeEnvelope    bool
	encodeAttachments bool
	encodeBundle      bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode <document.json>",
	Short: "Render a Finvoice message from a JSON document",
	Long: `Render a Finvoice 3.0 message (ISO-8859-15) from a document in the JSON
form printed by the decode command.

A missing message_id is generated.
  --envelope     prefix the ebXML SOAP envelope, as transmitted
  --attachments  render the FinvoiceAttachments companion message instead
  --bundle       write the zip archive uploaded to the network

Examples:
  finvoice-bridge encode invoice.json
  finvoice-bridge encode invoice.json --envelope -o payload.xml
  finvoice-bridge encode invoice.json --bundle -o finvoice.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "", "Output file (default: stdout)")
	encodeCmd.Flags().BoolVar(&encodeEnvelope, "envelope", false, "Include the SOAP envelope")
	encodeCmd.Flags().BoolVar(&encodeAttachments, "attachments", false, "Render the attachment message")
	encodeCmd.Flags().BoolVar(&encodeBundle, "bundle", false, "Write the upload zip archive")
	encodeCmd.MarkFlagsMutuallyExclusive("envelope", "attachments", "bundle")
}

func runEncode(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	if doc.MessageID == "" {
		if doc.MessageID, err = reference.NewGenerator().MessageID(); err != nil {
			return err
		}
		printVerbose("Generated message id %s\n", doc.MessageID)
	}
	for _, finding := range model.Validate(&doc) {
		printVerbose("Warning: %s\n", finding.Error())
	}

	codec := finvoice.NewCodec()
	var out []byte
	switch {
	case encodeAttachments:
		out, err = codec.AttachmentMessage(&doc)
	case encodeEnvelope:
		out, err = codec.Payload(&doc)
	case encodeBundle:
		out, err = codec.Payload(&doc)
		if err == nil {
			out, err = bundle.Build(out, doc.Attachments)
		}
	default:
		out, err = codec.Encode(&doc)
	}
	if err != nil {
		return err
	}
	if len(out) == 0 {
		printVerbose("Nothing to write\n")
		return nil
	}

	w, err := openOutput(encodeOutput)
	if err != nil {
		return err
	}
	defer w.Close()

	_, err = w.Write(out)
	return err
}
