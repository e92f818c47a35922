package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/context-curator/types"
	"github.com/tieubaoca/context-curator/utils"
)

// ingestScreenshotCmd stores a captured page, as the browser extension sends it.
var ingestScreenshotCmd = &cobra.Command{
	Use:   "ingest-screenshot",
	Short: "Store a page screenshot with its description and OCR text",
	Run: func(cmd *cobra.Command, args []string) {
		filePath, _ := cmd.Flags().GetString("file")
		dataURL, _ := cmd.Flags().GetString("data-url")
		pageURL, _ := cmd.Flags().GetString("url")
		title, _ := cmd.Flags().GetString("title")

		var image []byte
		var mimeType string
		var err error
		switch {
		case filePath != "":
			image, err = os.ReadFile(filePath)
		case dataURL != "":
			image, mimeType, err = utils.DecodeDataURL(dataURL)
		default:
			log.Fatal("One of --file or --data-url is required")
		}
		if err != nil {
			log.Fatalf("Failed to read screenshot: %v", err)
		}

		ctx, cancel := commandContext()
		defer cancel()
		if cmd.Flags().Changed("curate") {
			cfg.Curation.CurateScreenshots, _ = cmd.Flags().GetBool("curate")
		}
		a := mustApp(ctx, cmd)
		defer a.Close()

		result, err := a.screenshots().Ingest(ctx, types.Screenshot{
			Image:     image,
			MimeType:  mimeType,
			PageURL:   pageURL,
			PageTitle: title,
		})
		if result != nil {
			printJSON(result)
		}
		if err != nil {
			log.Fatalf("Failed to process screenshot: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestScreenshotCmd)

	ingestScreenshotCmd.Flags().StringP("file", "f", "", "Path to a PNG screenshot")
	ingestScreenshotCmd.Flags().String("data-url", "", "Screenshot as a base64 data URL")
	ingestScreenshotCmd.Flags().StringP("url", "u", "", "URL of the captured page")
	ingestScreenshotCmd.Flags().StringP("title", "t", "", "Title of the captured page")
	ingestScreenshotCmd.Flags().Bool("curate", false, "Also run the passive flow on the page (default from config)")
}
