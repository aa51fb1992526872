/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opentdf/contextvault/pkg/vault"
	"github.com/opentdf/contextvault/pkg/vault/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// chunkFile is the document format read by publish. Chunks are numbered in
// file order.
//
//	fileName: manual.pdf
//	category: General
//	chunks:
//	  - intro
//	  - body
type chunkFile struct {
	FileName  string    `yaml:"fileName"`
	Category  string    `yaml:"category"`
	CreatedAt time.Time `yaml:"createdAt"`
	Chunks    []string  `yaml:"chunks"`
}

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <chunk-file>",
	Short: "Seal a chunked document and list it on the ledger",
	Args:  cobra.ExactArgs(1),
	Run:   publish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("title", "", "listing title (default file name)")
	publishCmd.Flags().Int64("price", 0, "informational price per query in the smallest currency unit")
	publishCmd.Flags().Bool("confirm", false, "ask before every signature")
	publishCmd.Flags().String("output", "yaml", "output format (yaml or json)")
}

func loadChunkFile(path string) (vault.DocumentPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vault.DocumentPayload{}, err
	}
	var cf chunkFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return vault.DocumentPayload{}, fmt.Errorf("could not parse chunk file %s: %w", path, err)
	}
	if cf.FileName == "" {
		cf.FileName = filepath.Base(path)
	}
	if cf.CreatedAt.IsZero() {
		cf.CreatedAt = time.Now()
	}
	payload := vault.DocumentPayload{
		FileName:  cf.FileName,
		Category:  cf.Category,
		CreatedAt: cf.CreatedAt.UTC(),
		Chunks:    make([]vault.Chunk, 0, len(cf.Chunks)),
	}
	for i, text := range cf.Chunks {
		payload.Chunks = append(payload.Chunks, vault.Chunk{Index: i, Text: text})
	}
	return payload, payload.Validate()
}

func publish(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	payload, err := loadChunkFile(args[0])
	exitOnErr("could not load document", err)

	profile, err := loadProfile(profileName)
	exitOnErr("could not load profile", err)
	confirm, _ := cmd.Flags().GetBool("confirm")
	b, err := openBackends(ctx, profile, openOptions{withSigner: true, confirm: confirm})
	exitOnErr("could not open backends", err)
	defer b.Close()

	c, err := b.client()
	exitOnErr("could not create client", err)

	title, _ := cmd.Flags().GetString("title")
	price, _ := cmd.Flags().GetInt64("price")
	listing, err := c.Publish(ctx, payload, client.PublishOptions{
		Owner:         b.signer.Identity(),
		Title:         title,
		PricePerQuery: price,
	})
	exitOnErr("could not publish document", err)

	format, _ := cmd.Flags().GetString("output")
	exitOnErr("could not write listing", printResult(cmd.OutOrStdout(), format, listing))
}
