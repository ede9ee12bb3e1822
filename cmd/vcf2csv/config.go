package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vcf2csv/internal/dbload"
	"github.com/inodb/vcf2csv/internal/postgres"
	"github.com/inodb/vcf2csv/internal/progress"
	"github.com/inodb/vcf2csv/internal/vcf"
)

const configName = ".vcf2csv"

// initConfig layers ~/.vcf2csv.yaml and VCF2CSV_* environment variables
// under the command-line flags.
func initConfig() error {
	viper.SetEnvPrefix("VCF2CSV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("consequences", "consequences.json")
	viper.SetDefault("strains", "strains.json")
	viper.SetDefault("output", "output.csv")
	viper.SetDefault("samples.start", vcf.DefaultSampleWindow.Start)
	viper.SetDefault("samples.count", vcf.DefaultSampleWindow.Count)
	viper.SetDefault("progress.interval", progress.DefaultInterval)
	viper.SetDefault("progress.line_bytes", progress.DefaultLineBytes)
	viper.SetDefault("load.batch_size", dbload.DefaultBatchSize)
	viper.SetDefault("load.driver", "duckdb")
	viper.SetDefault("duckdb.path", "vcf2csv.duckdb")
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.connect_retries", postgres.DefaultConnectRetries)

	// Also accept the plain POSTGRES_* names used by .env files and the postgres image.
	for key, env := range map[string]string{
		"postgres.user":     "POSTGRES_USER",
		"postgres.password": "POSTGRES_PASSWORD",
		"postgres.host":     "POSTGRES_HOST",
		"postgres.port":     "POSTGRES_PORT",
		"postgres.database": "POSTGRES_DB",
	} {
		if err := viper.BindEnv(key, "VCF2CSV_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return err
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	viper.AddConfigPath(home)
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vcf2csv configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.vcf2csv.yaml.",
		Example: `  vcf2csv config                               # show all config
  vcf2csv config set strains data/strains.json  # change the default strain file
  vcf2csv config get samples.count               # get a value`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	settings := viper.AllSettings()
	delete(settings, "verbose")
	delete(settings, "debug")
	if pg, ok := settings["postgres"].(map[string]any); ok {
		if _, set := pg["password"]; set {
			pg["password"] = "****"
		}
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// runConfigSet writes one key into the config file. Only the file's own
// contents are rewritten; defaults and environment values stay out of it.
func runConfigSet(cmd *cobra.Command, key, value string) error {
	var val any = value
	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		val = true
	case "false", "no", "off":
		val = false
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, configName+".yaml")
	}

	file := viper.New()
	file.SetConfigFile(cfgFile)
	file.SetConfigType("yaml")
	if _, err := os.Stat(cfgFile); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	file.Set(key, val)

	if err := file.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	viper.Set(key, val)

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}
