package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hopon/go-hopon"
)

// hopon is a terminal client for the HopOn backend. It drives the same SDK
// the app frontends use, which makes it a convenient smoke test for a
// deployment: log in, inspect the session, browse and join events.

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type appContext struct {
	manager *hopon.SessionManager
	client  *hopon.Client
	store   *hopon.BunStore
}

func newRootCommand() *cobra.Command {
	var (
		baseURL string
		stateDB string
		verbose bool
		app     appContext
	)

	cmd := &cobra.Command{
		Use:           "hopon",
		Short:         "Terminal client for the HopOn pickup-sports backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := hopon.NewConsoleLogger(verbose)

			cfg := hopon.SimpleConfig{BaseURL: baseURL}
			client, err := hopon.NewClient(cfg)
			if err != nil {
				return err
			}
			client.WithLogger(logger)

			if err := os.MkdirAll(filepath.Dir(stateDB), 0o755); err != nil {
				return fmt.Errorf("create state dir: %w", err)
			}
			store, err := hopon.OpenBunStore(cmd.Context(), "file:"+stateDB)
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}

			app.client = client
			app.store = store
			app.manager = hopon.NewSessionManager(client, store, cfg).
				WithLogger(logger).
				WithLauncher(hopon.NewLoopbackLauncher(logger))

			return app.manager.Start(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.manager != nil {
				app.manager.Close()
			}
			if app.store != nil {
				app.store.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&baseURL, "api", "http://localhost:8000", "backend base URL")
	cmd.PersistentFlags().StringVar(&stateDB, "state", defaultStatePath(), "sqlite file holding guest identity")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newLoginCommand(&app))
	cmd.AddCommand(newLogoutCommand(&app))
	cmd.AddCommand(newSessionCommand(&app))
	cmd.AddCommand(newEventsCommand(&app))

	return cmd
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "hopon.db"
	}
	return filepath.Join(dir, "hopon", "state.db")
}

func newLoginCommand(app *appContext) *cobra.Command {
	var (
		email    string
		password string
		demo     bool
		username string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google, email/password, or the demo account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			switch {
			case demo:
				if err := app.manager.LoginAsDemo(ctx, hopon.DemoOptions{Username: username, Email: email}); err != nil {
					return err
				}
			case email != "":
				if err := app.manager.Login(ctx, hopon.Credentials{Email: email, Password: password}); err != nil {
					return err
				}
			default:
				if err := app.manager.LoginWithGoogle(ctx); err != nil {
					return err
				}
			}

			user := app.manager.CurrentUser()
			if user == nil {
				return fmt.Errorf("login did not produce a user")
			}
			fmt.Printf("signed in as %s <%s>\n", user.Username, user.Email)
			if user.NeedsUsernameSetup {
				fmt.Println("account needs a username, run: hopon session setup --username <name>")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email for password login")
	cmd.Flags().StringVar(&password, "password", "", "password for password login")
	cmd.Flags().BoolVar(&demo, "demo", false, "use the development demo login")
	cmd.Flags().StringVar(&username, "username", "", "demo username")

	return cmd
}

func newLogoutCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the current session (guest identity is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.manager.Logout(cmd.Context())
		},
	}
}

func newSessionCommand(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(app.manager.Snapshot())
		},
	}

	var setupUsername string
	setup := &cobra.Command{
		Use:   "setup",
		Short: "Complete the profile after a first social login",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.client.SetupAccount(cmd.Context(), hopon.SetupAccountInput{Username: setupUsername})
			if err != nil {
				return err
			}
			fmt.Printf("profile ready: %s\n", user.Username)
			return nil
		},
	}
	setup.Flags().StringVar(&setupUsername, "username", "", "username to claim")
	setup.MarkFlagRequired("username")

	cmd.AddCommand(setup)
	return cmd
}

func newEventsCommand(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Browse and join events",
	}

	var lat, lng float64
	list := &cobra.Command{
		Use:   "list",
		Short: "List nearby events",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := app.client.NearbyEvents(cmd.Context(), lat, lng)
			if err != nil {
				return err
			}
			for _, event := range events {
				fmt.Printf("#%d %s (%s) %d/%d @ %s\n",
					event.ID, event.Name, event.Sport,
					event.CurrentPlayers, event.MaxPlayers, event.Location)
			}
			return nil
		},
	}
	list.Flags().Float64Var(&lat, "lat", 0, "latitude")
	list.Flags().Float64Var(&lng, "lng", 0, "longitude")

	var eventID int
	var playerName string
	join := &cobra.Command{
		Use:   "join",
		Short: "Join an event, as a guest when signed out",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			input := hopon.JoinEventInput{
				GuestToken: app.manager.GuestToken(eventID),
			}
			if app.manager.Status() != hopon.StatusAuthenticated {
				name := playerName
				if name == "" {
					name = app.manager.GuestName()
				}
				if name == "" {
					return fmt.Errorf("signed out, provide --name for a guest join")
				}
				input.PlayerName = name
				if err := app.manager.SetGuestName(ctx, name); err != nil {
					return err
				}
			}

			result, err := app.client.JoinEvent(ctx, eventID, input)
			if err != nil {
				return err
			}
			if result.GuestToken != "" {
				if err := app.manager.RememberGuestToken(ctx, eventID, result.GuestToken); err != nil {
					return err
				}
			}
			fmt.Println(result.Message)
			return nil
		},
	}
	join.Flags().IntVar(&eventID, "id", 0, "event id")
	join.Flags().StringVar(&playerName, "name", "", "guest display name")
	join.MarkFlagRequired("id")

	leave := &cobra.Command{
		Use:   "leave",
		Short: "Leave an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			token := app.manager.GuestToken(eventID)
			if err := app.client.LeaveEvent(ctx, eventID, token); err != nil {
				return err
			}
			if token != "" {
				if err := app.manager.ClearGuestToken(ctx, eventID); err != nil {
					return err
				}
			}
			return nil
		},
	}
	leave.Flags().IntVar(&eventID, "id", 0, "event id")
	leave.MarkFlagRequired("id")

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List joined and hosted events",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := app.client.MyEvents(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(events)
		},
	}

	cmd.AddCommand(list, join, leave, mine)
	return cmd
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
