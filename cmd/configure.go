/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/opentdf/contextvault/internal/tui"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configureCmd represents the configure command
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a ctxvault profile",
	Run:   configure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func configure(cmd *cobra.Command, args []string) {
	if err := loadViperConfig(); err != nil {
		fmt.Println("No config file found, creating one...")
	}
	current, err := loadProfile(profileName)
	if err != nil {
		fmt.Printf("could not read profile %s: %v\n", profileName, err)
		os.Exit(1)
	}

	p := tea.NewProgram(tui.InitialModel(formDefaults(profileName, current)))
	m, err := p.Run()
	if err != nil {
		fmt.Printf("the tea is rotten: %v", err)
		os.Exit(1)
	}
	form, ok := m.(tui.Model)
	if !ok {
		fmt.Print("can't assert tui model")
		os.Exit(1)
	}
	if form.Quit {
		fmt.Println("Not saving configuration...")
		os.Exit(0)
	}

	name, profile := profileFromForm(form)
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		fmt.Printf("could not load configuration from viper: %v", err)
		os.Exit(1)
	}
	if config.Profiles == nil {
		config.Profiles = map[string]ProfileConfig{}
	}
	config.Profiles[name] = profile

	tomlConfig, err := toml.Marshal(&config)
	if err != nil {
		fmt.Printf("could not marshal configuration to []byte: %v", err)
		os.Exit(1)
	}
	if err := viper.MergeConfig(bytes.NewReader(tomlConfig)); err != nil {
		fmt.Printf("could not merge existing configuration: %v", err)
		os.Exit(1)
	}

	dir, err := configDir()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	path := cfgFile
	if path == "" {
		path = filepath.Join(dir, "config")
	}
	if err := viper.WriteConfigAs(path); err != nil {
		fmt.Printf("viper could not save configuration: %v", err)
		os.Exit(1)
	}
	fmt.Println("Config saved! ", path)
}

func formDefaults(name string, p ProfileConfig) map[int]string {
	d := map[int]string{
		tui.ProfileName:           name,
		tui.StorageBackend:        p.Storage.Backend,
		tui.StorageLocation:       p.Storage.Path,
		tui.LedgerBackend:         p.Ledger.Backend,
		tui.LedgerDSN:             p.Ledger.DSN,
		tui.SignerType:            p.Signer.Type,
		tui.SignerKey:             p.Signer.KeyFile,
		tui.OidcDiscoveryEndpoint: p.Oidc.DiscoveryEndpoint,
		tui.ClientID:              p.Oidc.ClientID,
		tui.ClientSecret:          p.Oidc.ClientSecret,
	}
	if p.Storage.Backend == "http" {
		d[tui.StorageLocation] = p.Storage.Endpoint
	}
	if p.Signer.Type == "pkcs11" {
		d[tui.SignerKey] = p.Signer.Label
	}
	return d
}

func profileFromForm(form tui.Model) (string, ProfileConfig) {
	name := form.Value(tui.ProfileName)
	if name == "" {
		name = "default"
	}
	p := defaultProfile()
	if v := form.Value(tui.StorageBackend); v != "" {
		p.Storage.Backend = v
	}
	if v := form.Value(tui.StorageLocation); v != "" {
		if p.Storage.Backend == "http" {
			p.Storage.Endpoint, p.Storage.Path = v, ""
		} else {
			p.Storage.Path = v
		}
	}
	if v := form.Value(tui.LedgerBackend); v != "" {
		p.Ledger.Backend = v
	}
	if v := form.Value(tui.LedgerDSN); v != "" {
		p.Ledger.DSN = v
	}
	if v := form.Value(tui.SignerType); v != "" {
		p.Signer.Type = v
	}
	if v := form.Value(tui.SignerKey); v != "" {
		if p.Signer.Type == "pkcs11" {
			p.Signer.Label, p.Signer.KeyFile = v, ""
		} else {
			p.Signer.KeyFile = v
		}
	}
	p.Oidc = OidcConfig{
		DiscoveryEndpoint: form.Value(tui.OidcDiscoveryEndpoint),
		ClientID:          form.Value(tui.ClientID),
		ClientSecret:      form.Value(tui.ClientSecret),
	}
	return name, p
}
