package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/localz/localzpush-go/internal/store"
	"github.com/localz/localzpush-go/internal/ui"
	"github.com/localz/localzpush-go/pkg/localzpush"
)

var (
	registerName   string
	locationAcc    float64
	locationEnable bool
	pushState      string
)

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(failCmd)
	rootCmd.AddCommand(nameCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(locationCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(fetchCmd)

	registerCmd.Flags().StringVar(&registerName, "name", "", "Device name to register with the token")
	locationCmd.Flags().Float64Var(&locationAcc, "accuracy", 0, "Horizontal accuracy in metres")
	locationCmd.Flags().BoolVar(&locationEnable, "enable", false, "Enable location services first")
	pushCmd.Flags().StringVar(&pushState, "app-state", "background", "App state: active, inactive, background")
}

// withService opens the SDK, runs fn and waits for background work
func withService(fn func(ctx context.Context, svc *localzpush.Service, st store.Store) error) error {
	svc, st, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	if err := fn(ctx, svc, st); err != nil {
		return err
	}
	svc.Wait()
	return nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize SDK state and show the effective configuration",
	Long: `Resolve the configuration, create the state file and device id, and print
the effective configuration. Configuration errors are reported here.`,
	Example: `  LOCALZPUSH_PROJECT_ID=p1 LOCALZPUSH_PROJECT_KEY=k1 localzpush init --region EU`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(_ context.Context, svc *localzpush.Service, st store.Store) error {
			fmt.Println(configPanel(svc.Config(), "localzpush init").Render())
			fmt.Println(ui.NewSuccessResult("state initialized").
				AddDetail("Device", svc.DeviceID()).
				AddDetail("State file", stateFileName(st)))
			return nil
		})
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Request push permission (no-op once enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *localzpush.Service, _ store.Store) error {
			if err := svc.Start(ctx); err != nil {
				return err
			}
			if !svc.IsPushNotificationEnabled() {
				fmt.Println(ui.NewWarningResult("push permission denied"))
				return nil
			}
			fmt.Println(ui.NewSuccessResult("started").AddDetail("State", svc.State().String()))
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <token>",
	Short: "Deliver a push token as the OS would",
	Long: `Deliver a device token to the SDK. The first token registers the device;
later tokens update it. Re-delivering the registered token does nothing.`,
	Example: `  localzpush register 5f1c0a... --name "Front desk"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(_ context.Context, svc *localzpush.Service, _ store.Store) error {
			before, prevToken, prevName := svc.State(), svc.DeviceToken(), svc.DeviceName()
			if err := svc.DeviceRegisteredWithTokenAndName(args[0], registerName); err != nil {
				return err
			}
			svc.Wait()
			if before == localzpush.StateRegistered && svc.State() == localzpush.StateRegistered &&
				prevToken == args[0] && (registerName == "" || registerName == prevName) {
				fmt.Println(ui.NewSuccessResult("already registered").AddDetail("Device", svc.DeviceID()))
			}
			return nil
		})
	},
}

var failCmd = &cobra.Command{
	Use:   "fail <message>",
	Short: "Report that the OS failed to produce a push token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(_ context.Context, svc *localzpush.Service, _ store.Store) error {
			return svc.DeviceRegistrationFailed(errors.New(args[0]))
		})
	},
}

var nameCmd = &cobra.Command{
	Use:   "name <device-name>",
	Short: "Rename the device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(_ context.Context, svc *localzpush.Service, _ store.Store) error {
			if err := svc.SetDeviceName(args[0]); err != nil {
				return err
			}
			if svc.State() != localzpush.StateRegistered {
				fmt.Println(ui.NewSuccessResult("name saved for the next registration"))
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registration and location state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(_ context.Context, svc *localzpush.Service, st store.Store) error {
			fmt.Println(statusPanel(svc, st).Render())
			return nil
		})
	},
}

var locationCmd = &cobra.Command{
	Use:   "location <lat> <lng>",
	Short: "Feed a position update from the OS",
	Long: `Feed a position to the SDK. It is reported to the backend when location
services are enabled, the device is registered and the dynamic tracking
policy allows it. The position is also remembered as the simulated current
location used by locate pushes and background fetches.`,
	Example: `  localzpush location -33.8688 151.2093 --enable`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude: %w", err)
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude: %w", err)
		}
		loc := localzpush.Location{Latitude: lat, Longitude: lng, Accuracy: locationAcc, Timestamp: time.Now()}

		return withService(func(ctx context.Context, svc *localzpush.Service, st store.Store) error {
			if err := saveSimLocation(st, loc); err != nil {
				return err
			}
			if locationEnable {
				if err := svc.EnableLocationServices(ctx); err != nil {
					return err
				}
			}

			sent, err := svc.LocationUpdated(ctx, loc)
			if err != nil {
				return err
			}
			if sent {
				fmt.Println(ui.NewSuccessResult("location reported"))
			} else {
				fmt.Println(ui.NewWarningResult("location not reported (disabled, unregistered or gated by policy)"))
			}
			return nil
		})
	},
}

var pushCmd = &cobra.Command{
	Use:   "push <json-payload>",
	Short: "Deliver a remote notification payload",
	Example: `  localzpush push '{"alert":"hello"}'
  localzpush push '{"localz":{"action":"locate","force":true}}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload map[string]any
		if err := json.Unmarshal([]byte(args[0]), &payload); err != nil {
			return fmt.Errorf("payload is not a JSON object: %w", err)
		}
		state, err := parseAppState(pushState)
		if err != nil {
			return err
		}

		return withService(func(ctx context.Context, svc *localzpush.Service, _ store.Store) error {
			svc.RemoteNotificationReceived(ctx, payload, state, printFetchResult)
			return nil
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run a background fetch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *localzpush.Service, _ store.Store) error {
			if !svc.IsBackgroundRefreshEnabled() {
				fmt.Println(ui.NewWarningResult("background refresh is disabled"))
				return nil
			}
			svc.BackgroundFetch(ctx, printFetchResult)
			return nil
		})
	},
}

func printFetchResult(r localzpush.FetchResult) {
	fmt.Println(ui.NewSuccessResult("completion").AddDetail("Result", r.String()))
}

func parseAppState(s string) (localzpush.AppState, error) {
	switch s {
	case "active":
		return localzpush.AppStateActive, nil
	case "inactive":
		return localzpush.AppStateInactive, nil
	case "background":
		return localzpush.AppStateBackground, nil
	default:
		return 0, fmt.Errorf("unknown app state %q", s)
	}
}

func saveSimLocation(st store.Store, loc localzpush.Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return st.Update(func(tx *store.Tx) error {
		tx.Set(keySimLocation, string(data))
		return nil
	})
}

func stateFileName(st store.Store) string {
	if fs, ok := st.(*store.FileStore); ok {
		return fs.Path()
	}
	return "(memory)"
}

func configPanel(c localzpush.Config, command string) *ui.Panel {
	p := ui.NewPanel("Configuration", command)
	p.Add("Project", c.ProjectID).
		Add("Environment", c.Environment).
		Add("Region", fmt.Sprintf("%s (%d)", c.RegionCode, int(c.RegionCode))).
		Add("Host", c.Host).
		AddBool("Debug", c.Debug).
		AddBool("Dev env", c.DevEnv).
		Add("SDK version", c.SDKVersion)
	if c.EnvID != "" {
		p.Add("Env id", c.EnvID)
	}
	if c.EnvURL != "" {
		p.Add("Env URL", c.EnvURL)
	}
	return p
}

func statusPanel(svc *localzpush.Service, st store.Store) *ui.Panel {
	p := ui.NewPanel("Device status", "localzpush status")
	p.Add("Device ID", svc.DeviceID())

	state := svc.State()
	tone := ui.ToneNormal
	switch state {
	case localzpush.StateRegistered:
		tone = ui.ToneGood
	case localzpush.StateRegisterFailed, localzpush.StateUpdateFailed:
		tone = ui.ToneBad
	}
	p.AddTone("State", state.String(), tone)

	p.AddBool("Started", svc.IsStarted()).
		AddBool("Push enabled", svc.IsPushNotificationEnabled()).
		Add("Token", orNone(svc.DeviceToken())).
		Add("Name", orNone(svc.DeviceName())).
		Add("Host", svc.Config().Host).
		AddBool("Location tracking", svc.IsLocationTrackingEnabled()).
		AddBool("Location authorized", svc.IsLocationServicesAuthorized()).
		AddBool("Background refresh", svc.IsBackgroundRefreshEnabled())

	dc := svc.DynamicConfig()
	if dc.Enabled {
		p.AddTone("Dynamic tracking", fmt.Sprintf("every %s / %.0fm", dc.MinInterval, dc.MinDistance), ui.ToneGood)
	} else {
		p.Add("Dynamic tracking", "off")
	}

	if at, ok := store.GetTime(st, store.KeyLastTrackingDate); ok {
		p.Add("Last report", at.Local().Format(time.RFC3339))
	}
	if raw, ok := st.Get(store.KeyLastLocation); ok {
		var loc localzpush.Location
		if json.Unmarshal([]byte(raw), &loc) == nil {
			p.Add("Last location", fmt.Sprintf("%.5f, %.5f", loc.Latitude, loc.Longitude))
		}
	}
	p.Add("State file", stateFileName(st))
	return p
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
