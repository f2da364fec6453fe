package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javking07/cleanbench/model"
	"github.com/javking07/cleanbench/report"
)

var reportHTML string

var reportCmd = &cobra.Command{
	Use:   "report [results file]",
	Short: "Render tables and charts for a finished run",
	Long: `report re-renders the per-rate tables, the bar charts, and the
sustainable-throughput analysis from a saved results file. With no
argument it picks the newest run under the output directory. --html
additionally writes a chart page viewable in a browser.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res *model.RunResult
		if len(args) == 1 {
			loaded, err := report.Load(args[0])
			if err != nil {
				return err
			}
			res = loaded
		} else {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			loaded, path, err := report.LoadLatest(config.Bench.OutputDir)
			if err != nil {
				return err
			}
			fmt.Printf("run: %s\n\n", path)
			res = loaded
		}

		report.Render(os.Stdout, res)
		report.RenderCharts(os.Stdout, res)

		if reportHTML != "" {
			if err := report.WriteHTML(reportHTML, res); err != nil {
				return err
			}
			fmt.Printf("\nhtml report saved: %s\n", reportHTML)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportHTML, "html", "", "also write an html chart page to this path")
}
