package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xgov/x402/registry"
	"github.com/xgov/x402/types"
	"github.com/xgov/x402/utils"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Query registered providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered provider, best first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		defer closeClient(c)

		listing := c.Registry().Listing(cmd.Context())
		if listing.Source != registry.SourceLive {
			pterm.Warning.Printfln("registry unreadable (%v), showing %s listing", listing.Err, listing.Source)
		} else if listing.Err != nil {
			return listing.Err
		}
		if len(listing.Profiles) == 0 {
			pterm.Info.Println("no providers registered")
			return nil
		}
		return renderProfiles(registry.Rank(listing.Profiles))
	},
}

var bestServiceType string

var providersBestCmd = &cobra.Command{
	Use:   "best",
	Short: "Show the highest-reputation provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		defer closeClient(c)

		best, err := c.SelectBest(cmd.Context(), bestServiceType)
		if err != nil {
			return err
		}
		if best == nil {
			pterm.Info.Println("no providers registered")
			return nil
		}
		return renderProfiles([]types.ProviderProfile{*best})
	},
}

var providersGetCmd = &cobra.Command{
	Use:   "get <owner>",
	Short: "Show the profile registered by an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := utils.ValidatePublicKey(args[0])
		if err != nil {
			return fmt.Errorf("owner: %w", err)
		}

		c, err := newClient(false)
		if err != nil {
			return err
		}
		defer closeClient(c)

		p, err := c.Registry().GetProfile(cmd.Context(), owner)
		if err != nil {
			return err
		}
		return renderProfiles([]types.ProviderProfile{*p})
	},
}

func init() {
	providersBestCmd.Flags().StringVar(&bestServiceType, "service-type", "", "only rank providers offering this service type")

	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersBestCmd)
	providersCmd.AddCommand(providersGetCmd)
}

func renderProfiles(profiles []types.ProviderProfile) error {
	data := pterm.TableData{{"Name", "Owner", "Profile", "Reputation", "Successful txs"}}
	for _, p := range profiles {
		data = append(data, []string{
			p.Name,
			p.OwnerKey.String(),
			p.AccountKey.String(),
			strconv.Itoa(int(p.ReputationScore)),
			strconv.FormatUint(uint64(p.TotalSuccessfulTxs), 10),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
