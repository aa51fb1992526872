/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/opentdf/contextvault/pkg/signer"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a signing key for the jwk signer",
	Long: `Generate a private JWK used to derive content keys. Every document
sealed with the key can only be opened again with the same key, so keep a
backup of it.`,
	Run: generateKey,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("type", "OKP", "key type, OKP (Ed25519) or RSA")
	generateCmd.Flags().String("output", "", "key file (default the profile's signer.keyfile)")
	generateCmd.Flags().Bool("force", false, "overwrite an existing key file")
}

func generateKey(cmd *cobra.Command, args []string) {
	kty, _ := cmd.Flags().GetString("type")
	output, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")

	if output == "" {
		profile, err := loadProfile(profileName)
		exitOnErr("could not load profile", err)
		output = profile.Signer.KeyFile
	}
	if _, err := os.Stat(output); err == nil && !force {
		exitOnErr("refusing to overwrite key", fmt.Errorf("%s exists, use --force", output))
	}
	exitOnErr("could not create key directory", os.MkdirAll(filepath.Dir(output), 0o700))

	s, err := signer.GenerateJWKFile(output, jwa.KeyType(strings.ToUpper(kty)))
	exitOnErr("could not generate key", err)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (identity %s)\n", output, s.Identity())
}
