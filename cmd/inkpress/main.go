package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crosspoint/inkpress/internal/config"
	"github.com/crosspoint/inkpress/internal/logging"
	"github.com/crosspoint/inkpress/internal/processor"
)

var rootCmd = &cobra.Command{
	Use:   "inkpress <input.epub> <output.epub>",
	Short: "Rewrite a generated EPUB for a resource-limited e-ink reader",
	Long: `inkpress post-processes a full-featured EPUB for an e-ink reading
device: it drops the generator's leading cover and index pages, strips
unsupported images (keeping the cover), shortens navigation titles to
the device's display budget, optionally swaps in a device stylesheet,
and re-emits a conformant EPUB container with an embedded diagnostics
record.`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		maxTitleLen, _ := cmd.Flags().GetInt("max-title-length")
		stylesheet, _ := cmd.Flags().GetString("stylesheet")
		keepImages, _ := cmd.Flags().GetBool("keep-images")
		debug, _ := cmd.Flags().GetBool("debug")

		profile := config.Default()
		if configPath != "" {
			var err error
			if profile, err = config.Load(configPath); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("max-title-length") {
			profile.MaxTitleLength = maxTitleLen
		}
		if stylesheet != "" {
			profile.Stylesheet = stylesheet
		}
		if keepImages {
			profile.StripImages = false
		}
		if err := profile.Validate(); err != nil {
			return err
		}

		log := logging.New(debug)

		p := processor.NewPipeline(processor.Options{
			InputPath:  args[0],
			OutputPath: args[1],
			Profile:    profile,
			Logger:     log,
			Debug:      debug || logging.DebugFromEnv(),
		})

		result, err := p.Process()
		if err != nil {
			return err
		}

		for _, w := range result.Warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d articles, %d bytes in %s\n",
			result.OutputPath, result.ArticleCount, result.OutputSize,
			result.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.Flags().String("config", "", "Device profile TOML file")
	rootCmd.Flags().Int("max-title-length", processor.DefaultMaxTitleLength, "Maximum navigation title length in display characters")
	rootCmd.Flags().String("stylesheet", "", "Replacement CSS copied into the package as stylesheet.css")
	rootCmd.Flags().Bool("keep-images", false, "Keep images instead of stripping them")
	rootCmd.Flags().Bool("debug", false, "Verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
