/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// grantCmd represents the grant command
var grantCmd = &cobra.Command{
	Use:   "grant <listing-id>",
	Short: "Issue a grant for a listing",
	Args:  cobra.ExactArgs(1),
	Run:   issueGrant,
}

var grantShowCmd = &cobra.Command{
	Use:   "show <grant-id>",
	Short: "Show a grant and its remaining uses",
	Args:  cobra.ExactArgs(1),
	Run:   showGrant,
}

func init() {
	rootCmd.AddCommand(grantCmd)
	grantCmd.AddCommand(grantShowCmd)

	grantCmd.Flags().String("holder", "", "identity of the grant holder")
	grantCmd.Flags().Int("quota", 1, "number of allowed uses")
	grantCmd.MarkFlagRequired("holder")
	grantCmd.PersistentFlags().String("output", "yaml", "output format (yaml or json)")
}

func issueGrant(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	profile, err := loadProfile(profileName)
	exitOnErr("could not load profile", err)
	b, err := openBackends(ctx, profile, openOptions{})
	exitOnErr("could not open backends", err)
	defer b.Close()

	holder, _ := cmd.Flags().GetString("holder")
	quota, _ := cmd.Flags().GetInt("quota")
	grant, err := b.ledger.IssueGrant(ctx, args[0], holder, quota)
	exitOnErr("could not issue grant", err)

	format, _ := cmd.Flags().GetString("output")
	exitOnErr("could not write grant", printResult(cmd.OutOrStdout(), format, grant))
}

func showGrant(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	profile, err := loadProfile(profileName)
	exitOnErr("could not load profile", err)
	b, err := openBackends(ctx, profile, openOptions{})
	exitOnErr("could not open backends", err)
	defer b.Close()

	grant, err := b.ledger.ReadGrant(ctx, args[0])
	exitOnErr("could not read grant", err)

	format, _ := cmd.Flags().GetString("output")
	exitOnErr("could not write grant", printResult(cmd.OutOrStdout(), format, struct {
		Grant any    `json:"grant"`
		State string `json:"state"`
	}{grant, string(grant.State())}))
}
