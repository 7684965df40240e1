package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

var (
	surfaceAddress  string
	estimateAddress string
	estimateBill    float64
)

var surfaceCmd = &cobra.Command{
	Use:   "surface",
	Short: "Find the most productive roof surface for an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cfg, "estimate", nil, skipInstallers)
		if err != nil {
			return err
		}

		res, err := env.Pipeline.BestSurface(cmd.Context(), surfaceAddress)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Project system size, cost and payback for an address",
	Example: `  solar-cli estimate --address "Bundesplatz 3, 3005 Bern" --bill 120`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cfg, "estimate", nil, skipInstallers)
		if err != nil {
			return err
		}

		res, err := env.Pipeline.Report(cmd.Context(), estimateAddress, estimateBill)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	surfaceCmd.Flags().StringVar(&surfaceAddress, "address", "", "street address")
	_ = surfaceCmd.MarkFlagRequired("address")

	estimateCmd.Flags().StringVar(&estimateAddress, "address", "", "street address")
	estimateCmd.Flags().Float64Var(&estimateBill, "bill", 0, "monthly electricity bill")
	_ = estimateCmd.MarkFlagRequired("address")
	_ = estimateCmd.MarkFlagRequired("bill")

	rootCmd.AddCommand(surfaceCmd, estimateCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
