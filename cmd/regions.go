package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stephenschott/affluence-cli/internal/model"
	"github.com/stephenschott/affluence-cli/internal/region"
)

var regionsLocate string

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Inspect the neighborhood boundary shapefile",
	Long:  "Loads the configured shapefile and lists the neighborhoods it defines. With --locate, resolves a single coordinate to its neighborhood instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		locator, err := region.LoadShapefile(cfg.Inputs.RegionsShapefile, cfg.Inputs.RegionNameField)
		if err != nil {
			return err
		}

		if regionsLocate != "" {
			coord, err := model.ParseCoordinatePair(regionsLocate)
			if err != nil {
				return err
			}
			name, ok := locator.Locate(coord)
			if !ok {
				fmt.Fprintln(os.Stderr, "Coordinate is outside every known neighborhood.")
				return nil
			}
			fmt.Println(name)
			return nil
		}

		fmt.Printf("%d neighborhoods in %s:\n", locator.Len(), cfg.Inputs.RegionsShapefile)
		for _, name := range locator.Names() {
			fmt.Println("  " + name)
		}
		return nil
	},
}

func init() {
	regionsCmd.Flags().StringVar(&regionsLocate, "locate", "", `coordinate to resolve, e.g. "[38.91, -77.03]"`)
	rootCmd.AddCommand(regionsCmd)
}
