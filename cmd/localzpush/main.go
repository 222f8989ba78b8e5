// Localzpush simulates a host application embedding the LocalzPush SDK.
//
// Each invocation restores SDK state from a YAML state file, performs one
// host-side action (start, deliver a token, feed a location, deliver a push)
// and exits. Development helpers run an in-process mock backend, listen for
// relayed pushes, and discover backends on the local network.
//
// Usage:
//
//	localzpush [command] [flags]
//
// Configuration is read from LOCALZPUSH_* environment variables; flags
// override them. See 'localzpush --help' for available commands.
package main

import (
	"fmt"
	"os"
	"reflect"

	envldr "github.com/SENERGY-Platform/go-env-loader"
	"github.com/spf13/cobra"

	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/region"
	"github.com/localz/localzpush-go/internal/version"
)

// cliConfig is loaded from the environment, then overridden by flags
type cliConfig struct {
	ProjectID         string      `env_var:"LOCALZPUSH_PROJECT_ID"`
	ProjectKey        string      `env_var:"LOCALZPUSH_PROJECT_KEY"`
	Environment       string      `env_var:"LOCALZPUSH_ENV"`
	Region            region.Code `env_var:"LOCALZPUSH_REGION"`
	Host              string      `env_var:"LOCALZPUSH_HOST"`
	StatePath         string      `env_var:"LOCALZPUSH_STATE"`
	Platform          string      `env_var:"LOCALZPUSH_PLATFORM"`
	Debug             bool        `env_var:"LOCALZPUSH_DEBUG"`
	LogLevel          string      `env_var:"LOCALZPUSH_LOG_LEVEL"`
	DenyPush          bool        `env_var:"LOCALZPUSH_DENY_PUSH"`
	LocationAuth      string      `env_var:"LOCALZPUSH_LOCATION_AUTH"`
	LocationServices  bool        `env_var:"LOCALZPUSH_LOCATION_SERVICES"`
	BackgroundRefresh bool        `env_var:"LOCALZPUSH_BACKGROUND_REFRESH"`
	Insecure          bool        `env_var:"LOCALZPUSH_INSECURE"`
}

func defaultConfig() cliConfig {
	return cliConfig{
		Platform:          "cli",
		LocationAuth:      "whenInUse",
		LocationServices:  true,
		BackgroundRefresh: true,
	}
}

var cfg = defaultConfig()

// typeParsers teaches the env loader to read region names as well as codes
func typeParsers() map[reflect.Type]envldr.Parser {
	return map[reflect.Type]envldr.Parser{
		reflect.TypeFor[region.Code](): regionParser,
	}
}

func regionParser(_ reflect.Type, val string, _ []string, _ map[string]string) (interface{}, error) {
	return region.ParseRegion(val)
}

// Flag values; applied over the environment only when set
var (
	flagProjectID  string
	flagProjectKey string
	flagEnv        string
	flagRegion     string
	flagHost       string
	flagState      string
	flagDebug      bool
	flagInsecure   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "localzpush",
	Short: "LocalzPush SDK host simulator",
	Long: `A command-line host application for the LocalzPush SDK.

Drives device registration, location reporting and push handling against a
real or mock backend. SDK state persists between invocations in a YAML state
file, exactly as it would on a device.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagProjectID, "project-id", "", "Project id (env LOCALZPUSH_PROJECT_ID)")
	pf.StringVar(&flagProjectKey, "project-key", "", "Project key (env LOCALZPUSH_PROJECT_KEY)")
	pf.StringVar(&flagEnv, "env", "", "Environment name (env LOCALZPUSH_ENV)")
	pf.StringVar(&flagRegion, "region", "", "Region name or code: AU, EU, US, DEV (env LOCALZPUSH_REGION)")
	pf.StringVar(&flagHost, "host", "", "API host or base URL, bypasses region (env LOCALZPUSH_HOST)")
	pf.StringVar(&flagState, "state", "", "State file path (env LOCALZPUSH_STATE)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable SDK debug logging")
	pf.BoolVar(&flagInsecure, "insecure", false, "Skip TLS verification for self-signed development backends")

	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command) error {
	loaded := defaultConfig()
	if err := envldr.LoadEnvUserParser(&loaded, nil, typeParsers(), nil); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if err := applyFlags(cmd, &loaded); err != nil {
		return err
	}
	cfg = loaded

	if cfg.LogLevel != "" {
		if err := logging.Initialize(cfg.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

func applyFlags(cmd *cobra.Command, c *cliConfig) error {
	flags := cmd.Flags()
	if flags.Changed("project-id") {
		c.ProjectID = flagProjectID
	}
	if flags.Changed("project-key") {
		c.ProjectKey = flagProjectKey
	}
	if flags.Changed("env") {
		c.Environment = flagEnv
	}
	if flags.Changed("region") {
		code, err := region.ParseRegion(flagRegion)
		if err != nil {
			return err
		}
		c.Region = code
	}
	if flags.Changed("host") {
		c.Host = flagHost
	}
	if flags.Changed("state") {
		c.StatePath = flagState
	}
	if flags.Changed("debug") {
		c.Debug = flagDebug
	}
	if flags.Changed("insecure") {
		c.Insecure = flagInsecure
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("localzpush %s\n", version.Full())
	},
}
