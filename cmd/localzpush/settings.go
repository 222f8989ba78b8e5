package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/localz/localzpush-go/internal/config"
	"github.com/localz/localzpush-go/internal/region"
	"github.com/localz/localzpush-go/internal/store"
	"github.com/localz/localzpush-go/internal/ui"
	"github.com/localz/localzpush-go/pkg/localzpush"
)

func init() {
	rootCmd.AddCommand(regionCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}

// settings builds SDK settings from the CLI configuration and saved overrides
func settings(advanced map[string]any) localzpush.Settings {
	return localzpush.Settings{
		ProjectID:   cfg.ProjectID,
		ProjectKey:  cfg.ProjectKey,
		Environment: cfg.Environment,
		Region:      cfg.Region,
		Host:        cfg.Host,
		Debug:       cfg.Debug,
		Advanced:    advanced,
	}
}

// validateOverrides resolves the configuration the SDK would see with the
// given overrides. Credentials are not checked here.
func validateOverrides(advanced map[string]any) (config.Config, error) {
	s := settings(advanced)
	if s.ProjectID == "" {
		s.ProjectID = "unset"
	}
	if s.ProjectKey == "" {
		s.ProjectKey = "unset"
	}

	resolver, err := config.NewResolver(nil)
	if err != nil {
		return config.Config{}, err
	}
	if err := resolver.Configure(s); err != nil {
		return config.Config{}, err
	}
	return resolver.Effective(), nil
}

// saveOverride validates and persists one override; value nil removes it
func saveOverride(st store.Store, key string, value *string) (config.Config, error) {
	adv := overrides(st)
	if value == nil {
		delete(adv, key)
	} else {
		adv[key] = *value
	}

	effective, err := validateOverrides(adv)
	if err != nil {
		return config.Config{}, err
	}

	err = st.Update(func(tx *store.Tx) error {
		if value == nil {
			tx.Delete(keyOverridePrefix + key)
		} else {
			tx.Set(keyOverridePrefix+key, *value)
		}
		return nil
	})
	return effective, err
}

var regionCmd = &cobra.Command{
	Use:   "region [name|code]",
	Short: "List regions or select the backend region",
	Long: `Without arguments, list the known regions and their API hosts.

With an argument, save the region as a configuration override. The region
given by --region or LOCALZPUSH_REGION still takes precedence.`,
	Example: `  localzpush region
  localzpush region EU
  localzpush region 9000`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			p := ui.NewPanel("Regions", "localzpush region")
			for _, code := range []region.Code{region.AU, region.EU, region.US, region.Dev} {
				host, _ := region.HostFor(code)
				p.Add(fmt.Sprintf("%s (%d)", code, int(code)), host)
			}
			fmt.Println(p.Render())
			return nil
		}

		code, err := region.ParseRegion(args[0])
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		value := strconv.Itoa(int(code))
		effective, err := saveOverride(st, config.KeyRegion, &value)
		if err != nil {
			return err
		}
		fmt.Println(ui.NewSuccessResult("region saved").
			AddDetail("Region", fmt.Sprintf("%s (%d)", code, int(code))).
			AddDetail("Host", effective.Host))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage advanced configuration overrides",
	Long: `Manage the override layer of the SDK configuration.

Overrides are saved in the state file and applied on every invocation.
Known keys: region, host, debug, devEnv, envId, envUrl. A change that
leaves the configuration invalid (for example an unknown region code) is
rejected and nothing is saved.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show saved overrides",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		adv := overrides(st)

		if len(args) == 1 {
			v, ok := adv[args[0]]
			if !ok {
				return fmt.Errorf("override %q is not set", args[0])
			}
			fmt.Println(v)
			return nil
		}

		p := ui.NewPanel("Overrides", "localzpush config get")
		if len(adv) == 0 {
			p.Add("(none)", "")
		}
		for _, k := range slices.Sorted(maps.Keys(adv)) {
			p.Add(k, fmt.Sprint(adv[k]))
		}
		fmt.Println(p.Render())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Short:   "Save an override",
	Example: `  localzpush config set host http://localhost:8080`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		effective, err := saveOverride(st, args[0], &args[1])
		if err != nil {
			return err
		}
		fmt.Println(configPanel(effective, "localzpush config set").Render())
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove an override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		effective, err := saveOverride(st, args[0], nil)
		if err != nil {
			return err
		}
		fmt.Println(configPanel(effective, "localzpush config unset").Render())
		return nil
	},
}
