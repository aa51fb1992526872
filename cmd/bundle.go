/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/opentdf/contextvault/pkg/archive"
	"github.com/opentdf/contextvault/pkg/vault"
	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Move sealed documents between profiles",
	Long: `Export a listing and its ciphertext to a zip bundle, or import a bundle
into the current profile's storage and ledger. Bundles never contain keys or
plaintext.`,
}

var bundleExportCmd = &cobra.Command{
	Use:   "export <listing-id> <file>",
	Short: "Write a listing and its ciphertext to a bundle",
	Args:  cobra.ExactArgs(2),
	Run:   exportBundle,
}

var bundleImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store a bundle's ciphertext and list it",
	Args:  cobra.ExactArgs(1),
	Run:   importBundle,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.AddCommand(bundleExportCmd)
	bundleCmd.AddCommand(bundleImportCmd)

	bundleImportCmd.Flags().String("output", "yaml", "output format (yaml or json)")
}

func exportBundle(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	profile, err := loadProfile(profileName)
	exitOnErr("could not load profile", err)
	b, err := openBackends(ctx, profile, openOptions{})
	exitOnErr("could not open backends", err)
	defer b.Close()

	listing, err := b.ledger.ReadListing(ctx, args[0])
	exitOnErr("could not read listing", err)
	if listing.Envelope == nil {
		exitOnErr("could not read listing", fmt.Errorf("listing %s has no envelope", listing.ID))
	}
	ciphertext, err := b.store.Get(ctx, listing.Envelope.ContentID)
	exitOnErr("could not read ciphertext", err)

	f, err := os.Create(args[1])
	exitOnErr("could not create bundle", err)
	defer f.Close()
	exitOnErr("could not write bundle", archive.Write(f, archive.Bundle{
		Listing:    listing,
		Envelope:   *listing.Envelope,
		Ciphertext: ciphertext,
	}))
	slog.Info("exported bundle", slog.String("listing", listing.ID), slog.String("file", args[1]))
}

func importBundle(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	profile, err := loadProfile(profileName)
	exitOnErr("could not load profile", err)
	b, err := openBackends(ctx, profile, openOptions{})
	exitOnErr("could not open backends", err)
	defer b.Close()

	f, err := os.Open(args[0])
	exitOnErr("could not open bundle", err)
	defer f.Close()
	bundle, err := archive.ReadAll(f)
	exitOnErr("could not read bundle", err)

	id, err := b.store.Put(ctx, bundle.Ciphertext)
	exitOnErr("could not store ciphertext", err)
	if id != bundle.Envelope.ContentID {
		exitOnErr("could not store ciphertext", fmt.Errorf("store returned id %s, bundle has %s", id, bundle.Envelope.ContentID))
	}

	listing, err := b.ledger.PersistEnvelope(ctx, bundle.Envelope, vault.Listing{
		Title:         bundle.Listing.Title,
		Category:      bundle.Listing.Category,
		PricePerQuery: bundle.Listing.PricePerQuery,
		Owner:         bundle.Listing.Owner,
		CreatedAt:     bundle.Listing.CreatedAt,
	})
	exitOnErr("could not persist envelope", err)

	format, _ := cmd.Flags().GetString("output")
	exitOnErr("could not write listing", printResult(cmd.OutOrStdout(), format, listing.Public()))
}
