package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx/internal/attach"
)

var (
	embedPDF    string
	embedXML    string
	embedOutput string
	embedName   string
	embedList   bool
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Attach Factur-X XML to a PDF",
	Long: `Attach an XML document to a PDF as an embedded file.

The attachment is named factur-x.xml unless --name says otherwise
(orderx.xml for Order-X documents). PDF/A-3 conversion is not performed;
start from a PDF/A-3 file when the result must be conformant.

Examples:
  facturx embed --pdf invoice.pdf --xml factur-x.xml -o invoice-facturx.pdf
  facturx embed --pdf order.pdf --xml orderx.xml --name orderx.xml -o out.pdf
  facturx embed --pdf invoice-facturx.pdf --list`,
	Args: cobra.NoArgs,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().StringVar(&embedPDF, "pdf", "", "Input PDF")
	embedCmd.Flags().StringVar(&embedXML, "xml", "", "XML file to attach")
	embedCmd.Flags().StringVarP(&embedOutput, "output", "o", "", "Output PDF")
	embedCmd.Flags().StringVar(&embedName, "name", attach.FilenameFacturX, "Attachment name")
	embedCmd.Flags().BoolVar(&embedList, "list", false, "List the attachments of --pdf instead")
	_ = embedCmd.MarkFlagRequired("pdf")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	embedder := attach.NewEmbedder()
	out := cmd.OutOrStdout()

	if embedList {
		f, err := os.Open(embedPDF)
		if err != nil {
			return err
		}
		defer f.Close()

		list, err := embedder.List(f)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(out, list)
		}
		for _, a := range list {
			fmt.Fprintf(out, "%s\t%s\n", a.Name, a.Description)
		}
		return nil
	}

	if embedXML == "" || embedOutput == "" {
		return fmt.Errorf("embed needs --xml and -o")
	}
	if err := embedder.EmbedFile(embedPDF, embedXML, embedOutput, embedName); err != nil {
		return err
	}
	log.Info().Str("pdf", embedOutput).Str("name", embedName).Msg("xml embedded")
	printVerbose(cmd.ErrOrStderr(), "Wrote %s\n", embedOutput)
	return nil
}
