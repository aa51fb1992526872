/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const configDirName = ".contextvault"

type Config struct {
	Profiles map[string]ProfileConfig `toml:"profiles" mapstructure:"profiles"`
}

type ProfileConfig struct {
	Storage StorageConfig `toml:"storage" mapstructure:"storage"`
	Ledger  LedgerConfig  `toml:"ledger" mapstructure:"ledger"`
	Signer  SignerConfig  `toml:"signer" mapstructure:"signer"`
	Oidc    OidcConfig    `toml:"oidc" mapstructure:"oidc"`
	Kdf     KdfConfig     `toml:"kdf" mapstructure:"kdf"`
}

type StorageConfig struct {
	// Backend is badger or http.
	Backend  string `toml:"backend" mapstructure:"backend"`
	Path     string `toml:"path,omitempty" mapstructure:"path"`
	Endpoint string `toml:"endpoint,omitempty" mapstructure:"endpoint"`
}

type LedgerConfig struct {
	// Backend is badger or postgres.
	Backend string `toml:"backend" mapstructure:"backend"`
	// DSN is a badger directory or a postgres url.
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type SignerConfig struct {
	// Type is jwk or pkcs11.
	Type    string `toml:"type" mapstructure:"type"`
	KeyFile string `toml:"keyfile,omitempty" mapstructure:"keyfile"`
	Module  string `toml:"module,omitempty" mapstructure:"module"`
	Pin     string `toml:"pin,omitempty" mapstructure:"pin"`
	Label   string `toml:"label,omitempty" mapstructure:"label"`
}

type OidcConfig struct {
	DiscoveryEndpoint string `toml:"discoveryendpoint,omitempty" mapstructure:"discoveryendpoint"`
	ClientID          string `toml:"clientid,omitempty" mapstructure:"clientid"`
	ClientSecret      string `toml:"clientsecret,omitempty" mapstructure:"clientsecret"`
}

type KdfConfig struct {
	Scheme string `toml:"scheme,omitempty" mapstructure:"scheme"`
}

func configDir() (string, error) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, configDirName), nil
}

// defaultProfile is used when a profile is missing from the config file:
// local badger storage and ledger under the config directory.
func defaultProfile() ProfileConfig {
	dir, err := configDir()
	if err != nil {
		dir = configDirName
	}
	return ProfileConfig{
		Storage: StorageConfig{Backend: "badger", Path: filepath.Join(dir, "blobs")},
		Ledger:  LedgerConfig{Backend: "badger", DSN: filepath.Join(dir, "ledger")},
		Signer:  SignerConfig{Type: "jwk", KeyFile: filepath.Join(dir, "signer.jwk")},
	}
}

func loadViperConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(dir)
		viper.AddConfigPath(configDirName)
		viper.SetConfigName("config")
	}
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("ctxvault")
	viper.AutomaticEnv()

	return viper.ReadInConfig()
}

// loadProfile reads the named profile. Unset keys fall back to
// defaultProfile.
func loadProfile(name string) (ProfileConfig, error) {
	var notFound viper.ConfigFileNotFoundError
	if err := loadViperConfig(); err != nil && !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return ProfileConfig{}, err
	}
	profile := defaultProfile()
	if !viper.IsSet("profiles." + name) {
		return profile, nil
	}
	if err := viper.UnmarshalKey("profiles."+name, &profile); err != nil {
		return ProfileConfig{}, fmt.Errorf("could not load profile %s: %w", name, err)
	}
	return profile, nil
}
