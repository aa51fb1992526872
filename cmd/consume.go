/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	"github.com/opentdf/contextvault/pkg/vault"
	"github.com/spf13/cobra"
)

// consumeCmd represents the consume command
var consumeCmd = &cobra.Command{
	Use:   "consume <grant-id>",
	Short: "Decrypt a document with a grant, spending one use",
	Long: `Decrypt the document a grant refers to. One use of the grant is spent
only after the document was decrypted and decoded.`,
	Args: cobra.ExactArgs(1),
	Run:  consume,
}

var openCmd = &cobra.Command{
	Use:   "open <listing-id>",
	Short: "Decrypt one of your own listings without a grant",
	Args:  cobra.ExactArgs(1),
	Run:   openListing,
}

func init() {
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(openCmd)

	for _, c := range []*cobra.Command{consumeCmd, openCmd} {
		c.Flags().Bool("confirm", false, "ask before every signature")
		c.Flags().String("output", "yaml", "output format (yaml or json)")
	}
}

type documentOutput struct {
	FileName  string        `json:"fileName"`
	Category  string        `json:"category"`
	CreatedAt string        `json:"createdAt"`
	Chunks    []vault.Chunk `json:"chunks"`
	Remaining *int          `json:"remaining,omitempty"`
}

func newDocumentOutput(p vault.DocumentPayload) documentOutput {
	return documentOutput{
		FileName:  p.FileName,
		Category:  p.Category,
		CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
		Chunks:    p.Chunks,
	}
}

func consume(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	profile, err := loadProfile(profileName)
	exitOnErr("could not load profile", err)
	confirm, _ := cmd.Flags().GetBool("confirm")
	b, err := openBackends(ctx, profile, openOptions{withSigner: true, confirm: confirm})
	exitOnErr("could not open backends", err)
	defer b.Close()

	grant, err := b.ledger.ReadGrant(ctx, args[0])
	exitOnErr("could not read grant", err)
	c, err := b.client()
	exitOnErr("could not create client", err)

	payload, err := c.Consume(ctx, &grant)
	exitOnErr("could not consume grant", err)

	out := newDocumentOutput(payload)
	out.Remaining = &grant.QuotaRemaining
	format, _ := cmd.Flags().GetString("output")
	exitOnErr("could not write document", printResult(cmd.OutOrStdout(), format, out))
}

func openListing(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	profile, err := loadProfile(profileName)
	exitOnErr("could not load profile", err)
	confirm, _ := cmd.Flags().GetBool("confirm")
	b, err := openBackends(ctx, profile, openOptions{withSigner: true, confirm: confirm})
	exitOnErr("could not open backends", err)
	defer b.Close()

	env, err := b.ledger.ReadEnvelope(ctx, args[0])
	exitOnErr("could not read envelope", err)
	c, err := b.client()
	exitOnErr("could not create client", err)

	payload, err := c.Open(ctx, env)
	exitOnErr("could not open document", err)

	format, _ := cmd.Flags().GetString("output")
	exitOnErr("could not write document", printResult(cmd.OutOrStdout(), format, newDocumentOutput(payload)))
}
