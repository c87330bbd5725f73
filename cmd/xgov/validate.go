package main

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xgov/x402/settlement"
	"github.com/xgov/x402/utils"
)

var validateSuccess bool

var validateCmd = &cobra.Command{
	Use:   "validate <profile>",
	Short: "Record an evaluation of a provider's work",
	Long: `Sends a record_validation instruction for the seller profile account
and waits for confirmation. Pass --success=false to record a failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := utils.ValidatePublicKey(args[0])
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}

		c, err := newClient(true)
		if err != nil {
			return err
		}
		defer closeClient(c)

		spinner, _ := pterm.DefaultSpinner.Start("recording validation")
		sig, err := c.RecordValidation(cmd.Context(), profile, validateSuccess)
		switch {
		case errors.Is(err, settlement.ErrNotConfirmed):
			spinner.Warning(fmt.Sprintf("sent %s but not yet confirmed", sig))
			return nil
		case err != nil:
			spinner.Fail(err.Error())
			return err
		}
		spinner.Success(fmt.Sprintf("recorded: %s", sig))
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateSuccess, "success", true, "whether the provider's work was satisfactory")
}
