package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stitchflow-website/dirsync/internal/config"
)

// bindFlags binds the named flags of cmd to a fresh viper instance that also
// reads DIRSYNC_-prefixed environment variables. A flag set on the command
// line wins over the environment, which wins over the flag default.
func bindFlags(cmd *cobra.Command, names ...string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range names {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}
	return v, nil
}

// configPath returns the configuration file named by --config or DIRSYNC_CONFIG
func configPath(v *viper.Viper) (string, error) {
	path := v.GetString("config")
	if path == "" {
		return "", fmt.Errorf("--config flag or %s_CONFIG environment variable is required", config.EnvPrefix)
	}
	return path, nil
}
