package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/config"
	"github.com/iota-pico/iota-pico-storage-sub001/internal/logging"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/storeenv"
)

// app carries the settings shared by every subcommand.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "datatable",
		Short:         "Store and verify signed table rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfigFile(); err != nil {
				return err
			}
			return logging.Init(a.v.GetString("log-level"), a.v.GetBool("log-development"))
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("mode", "", "runtime mode: auto, http, mock or sql")
	flags.String("store-url", "", "remote store API base URL")
	flags.String("sql-driver", "", "sql driver: sqlite, postgres or mysql")
	flags.String("sql-dsn", "", "sql data source name")
	flags.Bool("compress", false, "compress values with zstd")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.Bool("log-development", false, "human-friendly log output")
	flags.String("table", "rows", "table name")
	flags.String("private-key", "", "PEM private key file used to sign rows")
	flags.String("public-key", "", "PEM public key file used to verify rows")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvPrefix("DATATABLE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newRemoveCmd(a),
		newListCmd(a),
		newVerifyCmd(a),
		newKeygenCmd(),
		newSandboxCmd(),
	)
	return root
}

func (a *app) loadConfigFile() error {
	path := a.v.GetString("config")
	if path == "" {
		return nil
	}
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// storeConfig starts from the environment and applies flag and config file
// overrides.
func (a *app) storeConfig() (config.Config, error) {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return config.Config{}, err
	}
	if v := a.v.GetString("mode"); v != "" {
		cfg.Mode = v
	}
	if v := a.v.GetString("store-url"); v != "" {
		cfg.CStoreURL = v
	}
	if v := a.v.GetString("sql-driver"); v != "" {
		cfg.SQLDriver = v
	}
	if v := a.v.GetString("sql-dsn"); v != "" {
		cfg.SQLDSN = v
	}
	if a.v.GetBool("compress") {
		cfg.Compress = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (a *app) openStore(ctx context.Context) (*storeenv.Env, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, err
	}
	return storeenv.New(ctx, cfg)
}

// keys reads the configured PEM files. Either may be empty.
func (a *app) keys() (privateKey, publicKey string, err error) {
	read := func(flag string) (string, error) {
		path := a.v.GetString(flag)
		if path == "" {
			return "", nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", flag, err)
		}
		return string(data), nil
	}
	if privateKey, err = read("private-key"); err != nil {
		return "", "", err
	}
	if publicKey, err = read("public-key"); err != nil {
		return "", "", err
	}
	if privateKey != "" && publicKey == "" {
		return "", "", errors.New("--private-key needs a matching --public-key")
	}
	return privateKey, publicKey, nil
}
