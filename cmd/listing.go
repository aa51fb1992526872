/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// listingCmd represents the listing command
var listingCmd = &cobra.Command{
	Use:   "listing <listing-id>",
	Short: "Show a listing",
	Long:  `Show a listing. The access envelope is only printed with --envelope.`,
	Args:  cobra.ExactArgs(1),
	Run:   showListing,
}

func init() {
	rootCmd.AddCommand(listingCmd)

	listingCmd.Flags().Bool("envelope", false, "include the access envelope")
	listingCmd.Flags().String("output", "yaml", "output format (yaml or json)")
}

func showListing(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	profile, err := loadProfile(profileName)
	exitOnErr("could not load profile", err)
	b, err := openBackends(ctx, profile, openOptions{})
	exitOnErr("could not open backends", err)
	defer b.Close()

	listing, err := b.ledger.ReadListing(ctx, args[0])
	exitOnErr("could not read listing", err)
	if withEnvelope, _ := cmd.Flags().GetBool("envelope"); !withEnvelope {
		listing = listing.Public()
	}

	format, _ := cmd.Flags().GetString("output")
	exitOnErr("could not write listing", printResult(cmd.OutOrStdout(), format, listing))
}
