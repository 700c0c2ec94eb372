package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/o365connect/internal/adapters/driven/config"
	"github.com/custodia-labs/o365connect/internal/connectors/microsoft"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set the Azure AD application and storage settings",
	Long: `Write the settings file.

Register a native application at https://portal.azure.com with delegated
permissions for Office 365 Exchange Online (Send mail as a user) and the
Office 365 discovery service, and add the redirect URI below.

Interactive mode (no flags) prompts for each value.

Examples:
  o365connect configure
  o365connect configure --client-id 6e3e0e8b-5b0b-4c5e-9f0e-3d7f0f2d9a11
  o365connect configure --backend redis --redis-addr localhost:6379`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

var (
	configureClientID    string
	configureRedirectURI string
	configureBackend     string
	configureRedisAddr   string
	configureArchive     bool
)

// runConfigureForm is replaced in tests.
var runConfigureForm = func(cfg *config.Config) error {
	archive := cfg.Archive.Enabled
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Application (client) ID").
				Description("From the Azure AD app registration").
				Value(&cfg.ClientID).
				Validate(func(s string) error {
					return (microsoft.AppConfig{ClientID: s, RedirectURI: microsoft.DefaultRedirectURI}).Validate()
				}),
			huh.NewInput().
				Title("Redirect URI").
				Value(&cfg.RedirectURI),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should the session be stored?").
				Options(
					huh.NewOption("This machine (sqlite)", config.BackendSQLite),
					huh.NewOption("Redis", config.BackendRedis),
				).
				Value(&cfg.Session.Backend),
			huh.NewInput().
				Title("Redis address (redis backend only)").
				Placeholder("localhost:6379").
				Value(&cfg.Session.RedisAddr),
			huh.NewConfirm().
				Title("Keep a local copy of sent mail?").
				Value(&archive),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	cfg.Archive.Enabled = archive
	return nil
}

func init() {
	configureCmd.Flags().StringVar(&configureClientID, "client-id", "", "Azure AD application (client) ID")
	configureCmd.Flags().StringVar(&configureRedirectURI, "redirect-uri", "", "Loopback redirect URI registered for the app")
	configureCmd.Flags().StringVar(&configureBackend, "backend", "", "Session backend: sqlite or redis")
	configureCmd.Flags().StringVar(&configureRedisAddr, "redis-addr", "", "Redis address for the redis backend")
	configureCmd.Flags().BoolVar(&configureArchive, "archive", true, "Keep a local copy of sent mail")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, _ []string) error {
	if configPath == "" {
		return errors.New("config path not configured")
	}

	cfg := config.Default()
	if appConfig != nil {
		copied := *appConfig
		cfg = &copied
	}

	flags := cmd.Flags()
	nonInteractive := flags.Changed("client-id") || flags.Changed("redirect-uri") ||
		flags.Changed("backend") || flags.Changed("redis-addr") || flags.Changed("archive")

	switch {
	case nonInteractive:
		if flags.Changed("client-id") {
			cfg.ClientID = configureClientID
		}
		if flags.Changed("redirect-uri") {
			cfg.RedirectURI = configureRedirectURI
		}
		if flags.Changed("backend") {
			cfg.Session.Backend = configureBackend
		}
		if flags.Changed("redis-addr") {
			cfg.Session.RedisAddr = configureRedisAddr
		}
		if flags.Changed("archive") {
			cfg.Archive.Enabled = configureArchive
		}
	case isTerminal():
		if err := runConfigureForm(cfg); err != nil {
			return err
		}
	default:
		return errors.New("no terminal: pass the settings as flags, see 'o365connect configure --help'")
	}

	if err := cfg.Validate(); err != nil {
		return friendly(err)
	}
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}
	appConfig = cfg

	cmd.Printf("Saved %s\n", configPath)
	cmd.Printf("Make sure %s is a redirect URI of the app registration.\n", cfg.RedirectURI)
	return nil
}
