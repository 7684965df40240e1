package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/solar-cli/internal/lead"
)

var (
	leadInput lead.Input
	leadLimit int
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Capture and inspect leads",
}

var leadCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a lead to the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("lead"); err != nil {
			return err
		}
		le, err := initLeads(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer le.Close()

		res, err := le.Service.Create(cmd.Context(), leadInput)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var leadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent leads from the local lead store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("lead"); err != nil {
			return err
		}
		st, err := openLeadStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(cmd.Context(), leadLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), leads)
	},
}

func init() {
	leadCreateCmd.Flags().StringVar(&leadInput.Name, "name", "", "full name")
	leadCreateCmd.Flags().StringVar(&leadInput.Phone, "phone", "", "phone number")
	leadCreateCmd.Flags().StringVar(&leadInput.Address, "address", "", "street address")
	leadCreateCmd.Flags().Float64Var(&leadInput.MonthlyBill, "bill", 0, "monthly electricity bill")
	for _, f := range []string{"name", "phone", "address"} {
		_ = leadCreateCmd.MarkFlagRequired(f)
	}

	leadListCmd.Flags().IntVar(&leadLimit, "limit", 20, "max leads to list")

	leadCmd.AddCommand(leadCreateCmd, leadListCmd)
	rootCmd.AddCommand(leadCmd)
}
