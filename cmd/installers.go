package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/installer"
	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/pkg/google"
)

var (
	rankAddress string

	fetchQuery    string
	fetchOut      string
	fetchNear     string
	fetchRadiusKM float64
	fetchPages    int
	fetchLanguage string
)

var installersCmd = &cobra.Command{
	Use:   "installers",
	Short: "Rank installers or build the installer dataset",
}

var installersRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "List the installers nearest to an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cfg, "installers", nil, requireInstallers)
		if err != nil {
			return err
		}

		ranked, err := env.Pipeline.RankInstallers(cmd.Context(), rankAddress)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), ranked)
	},
}

var installersFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Build an installer CSV from a Google Places text search",
	Example: `  solar-cli installers fetch --query "Solaranlagen Installateur" --near "Zürich" --out installers.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Google.Key == "" {
			return eris.New("google.key is required (SOLAR_GOOGLE_KEY)")
		}

		opts := installer.FetchOptions{
			RadiusM:  fetchRadiusKM * 1000,
			MaxPages: fetchPages,
			Language: fetchLanguage,
		}
		if fetchNear != "" {
			env, err := initEnv(cfg, "installers", nil, skipInstallers)
			if err != nil {
				return err
			}
			near, err := env.Pipeline.Resolve(cmd.Context(), fetchNear)
			if err != nil {
				return err
			}
			opts.Near = &near
		}

		places := google.NewClient(cfg.Google.Key,
			google.WithTimeout(httpTimeout(cfg)),
			google.WithRateLimit(cfg.Geocode.RateLimit),
		)
		found, err := installer.Fetch(cmd.Context(), places, fetchQuery, opts)
		if err != nil {
			return err
		}

		return writeInstallers(cmd, fetchOut, found)
	},
}

func writeInstallers(cmd *cobra.Command, path string, list []model.Installer) error {
	if path == "" || path == "-" {
		return installer.WriteCSV(cmd.OutOrStdout(), list)
	}

	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return eris.Wrap(err, "installers: create output")
	}
	defer f.Close() //nolint:errcheck

	if err := installer.WriteCSV(f, list); err != nil {
		return err
	}
	zap.L().Info("installers: dataset written", zap.String("path", path), zap.Int("count", len(list)))
	return nil
}

func init() {
	installersRankCmd.Flags().StringVar(&rankAddress, "address", "", "street address")
	_ = installersRankCmd.MarkFlagRequired("address")

	installersFetchCmd.Flags().StringVar(&fetchQuery, "query", "", "Places text query")
	installersFetchCmd.Flags().StringVar(&fetchOut, "out", "", "output CSV path (default stdout)")
	installersFetchCmd.Flags().StringVar(&fetchNear, "near", "", "address to bias results toward")
	installersFetchCmd.Flags().Float64Var(&fetchRadiusKM, "radius-km", 25, "bias radius in kilometres")
	installersFetchCmd.Flags().IntVar(&fetchPages, "pages", 3, "max result pages")
	installersFetchCmd.Flags().StringVar(&fetchLanguage, "language", "", "result language code")
	_ = installersFetchCmd.MarkFlagRequired("query")

	installersCmd.AddCommand(installersRankCmd, installersFetchCmd)
	rootCmd.AddCommand(installersCmd)
}
