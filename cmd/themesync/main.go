package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"themesync/internal/app"
	"themesync/internal/config"
	"themesync/internal/themesync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config from the default location.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a ThemeApp. The caller must defer app.Close().
// operation identifies the command being run (e.g. "Sync", "Activate").
func newApp(cmd *cobra.Command, operation string) (*app.ThemeApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	actor, _ := cmd.Flags().GetString("actor")
	a, err := app.NewThemeApp(cmd.Context(), cfg, operation, actor)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase takes the passphrase from THEMESYNC_PASSPHRASE or prompts
// for it on the terminal. confirm asks twice.
func readPassphrase(prompt string, confirm bool) (string, error) {
	if p := os.Getenv("THEMESYNC_PASSPHRASE"); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for passphrase prompt; set THEMESYNC_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, prompt)
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}

var rootCmd = &cobra.Command{
	Use:          "themesync",
	Short:        "Theme synchronization and versioning",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Themes root: %s\n", cfg.Themes.Root)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Actor:       %s\n", cfg.Actor)
		fmt.Printf("Themes Root: %s\n", cfg.Themes.Root)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		for i, v := range cfg.Vaults {
			fmt.Printf("Vault %d:     %s (%s)\n", i, v.Name, v.Type)
		}
		return nil
	},
}

// themes command
var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List known themes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Themes")
		if err != nil {
			return err
		}
		defer a.Close()

		themes, err := a.Themes(cmd.Context())
		if err != nil {
			return err
		}
		if len(themes) == 0 {
			fmt.Println("No themes synced yet.")
			return nil
		}

		for _, t := range themes {
			marker := " "
			if t.Active {
				marker = "*"
			}
			fmt.Printf("%s %-24s %-12s %s\n", marker, t.Name, t.DeclaredVersion, t.DisplayName)
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync [THEME]",
	Short: "Record theme changes from disk as new versions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _ := cmd.Flags().GetString("message")
		dir, _ := cmd.Flags().GetString("dir")

		if len(args) == 0 {
			if dir != "" {
				return fmt.Errorf("--dir requires a theme name")
			}
			a, err := newApp(cmd, "SyncAll")
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := a.SyncAll(cmd.Context(), summary)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			failed := 0
			for _, r := range reports {
				printSyncReport(r)
				if r.Failed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d themes failed to sync", failed, len(reports))
			}
			return nil
		}

		a, err := newApp(cmd, "Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		var report *themesync.SyncReport
		if dir != "" {
			report, err = a.SyncDir(cmd.Context(), args[0], dir, summary)
		} else {
			report, err = a.Sync(cmd.Context(), args[0], summary)
		}
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		printSyncReport(report)
		return nil
	},
}

func printSyncReport(r *themesync.SyncReport) {
	if r.Failed() {
		fmt.Printf("%s: FAILED: %v\n", r.Theme, r.Err)
		return
	}
	if !r.VersionCreated {
		fmt.Printf("%s: up to date (%d files)\n", r.Theme, r.FilesScanned)
	} else {
		fmt.Printf("%s: version %s created (%d new, %d changed, %d unchanged)\n",
			r.Theme, r.VersionLabel, r.FilesCreated, r.FilesChanged, r.FilesUnchanged)
	}
	for _, p := range r.FilesMissing {
		fmt.Printf("  missing on disk: %s\n", p)
	}
}

// check command
var checkCmd = &cobra.Command{
	Use:   "check THEME",
	Short: "Report whether a theme has unsynced changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "CheckForUpdates")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Drift(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if report.DirectoryMissing {
			fmt.Printf("%s: theme directory is missing\n", args[0])
		}
		if report.HasDrifted() {
			fmt.Printf("%s has unsynced changes\n", args[0])
		} else {
			fmt.Printf("%s is up to date\n", args[0])
		}
		return nil
	},
}

// drift command
var driftCmd = &cobra.Command{
	Use:   "drift THEME",
	Short: "List files that differ from the last sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Drift")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Drift(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if report.DirectoryMissing {
			fmt.Println("Theme directory is missing; all tracked files are retained.")
		}
		if !report.HasDrifted() && len(report.Missing) == 0 {
			fmt.Println("No drift.")
			return nil
		}
		for _, p := range report.New {
			fmt.Printf("N  %s\n", p)
		}
		for _, p := range report.Changed {
			fmt.Printf("M  %s\n", p)
		}
		for _, p := range report.Missing {
			fmt.Printf("D  %s\n", p)
		}
		return nil
	},
}

// activate command
var activateCmd = &cobra.Command{
	Use:   "activate THEME",
	Short: "Make a theme the active theme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Activate")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Activate(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("activation failed: %w", err)
		}
		if result == themesync.AlreadyActive {
			fmt.Printf("%s is already active\n", args[0])
		} else {
			fmt.Printf("Activated %s\n", args[0])
		}
		return nil
	},
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the active theme",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ActiveTheme")
		if err != nil {
			return err
		}
		defer a.Close()

		theme, err := a.ActiveTheme(cmd.Context())
		if err != nil {
			return err
		}
		activated := ""
		if theme.ActivatedAt != nil {
			activated = theme.ActivatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s  activated %s by %s\n", theme.Name, activated, theme.ActivatedBy)
		return nil
	},
}

// versions command
var versionsCmd = &cobra.Command{
	Use:   "versions THEME [VERSION_ID]",
	Short: "List a theme's versions, or the files of one version",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ThemeVersions")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 2 {
			files, err := a.BatchFiles(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Printf("%s  v%d  %d bytes\n", f.Checksum[:12], f.VersionNumber, f.Size)
			}
			return nil
		}

		versions, err := a.ThemeVersions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Println("No versions.")
			return nil
		}
		for _, v := range versions {
			var flags []string
			if v.IsLive {
				flags = append(flags, "live")
			}
			if v.IsPreview {
				flags = append(flags, "preview")
			}
			fmt.Printf("%s  %-14s  %s  %-20s  %-10s  %s\n",
				v.ID,
				v.Label,
				v.CreatedAt.Format("2006-01-02 15:04:05"),
				v.Author,
				strings.Join(flags, ","),
				v.ChangeSummary,
			)
		}
		return nil
	},
}

// publish and preview commands
var publishCmd = &cobra.Command{
	Use:   "publish THEME VERSION_ID",
	Short: "Make a version live",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Publish")
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Publish(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
		fmt.Printf("Published %s %s\n", args[0], v.Label)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview THEME VERSION_ID",
	Short: "Mark a version as the preview candidate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Preview")
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Preview(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}
		fmt.Printf("Previewing %s %s\n", args[0], v.Label)
		return nil
	},
}

// tree command
var treeCmd = &cobra.Command{
	Use:   "tree THEME",
	Short: "Show a theme's tracked files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Tree")
		if err != nil {
			return err
		}
		defer a.Close()

		root, err := a.Tree(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(root.Name)
		printTree(root.Children, "")
		return nil
	},
}

func printTree(nodes []*themesync.TreeNode, indent string) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		if n.IsDir {
			fmt.Printf("%s%s%s/\n", indent, branch, n.Name)
			printTree(n.Children, indent+next)
			continue
		}
		fmt.Printf("%s%s%s (v%d)\n", indent, branch, n.Name, n.CurrentVersion)
	}
}

// cat command
var catCmd = &cobra.Command{
	Use:   "cat THEME PATH",
	Short: "Print a file's content from the version store",
	Args: func(cmd *cobra.Command, args []string) error {
		if active, _ := cmd.Flags().GetBool("active"); active {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt("version")
		active, _ := cmd.Flags().GetBool("active")

		a, err := newApp(cmd, "Read")
		if err != nil {
			return err
		}
		defer a.Close()

		var content []byte
		if active {
			content, err = a.Service().ReadActive(cmd.Context(), args[0])
		} else {
			content, err = a.Read(cmd.Context(), args[0], args[1], version)
		}
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(content)
		return err
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log THEME PATH",
	Short: "View file history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "FileHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.FileHistory(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		for _, e := range entries {
			current := ""
			if e.Current {
				current = "  [current]"
			}
			fmt.Printf("v%-3d %s  %s  %-10s %6d  %s%s\n",
				e.VersionNumber,
				e.Checksum[:12],
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.VersionLabel,
				e.Size,
				e.Author,
				current,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %-20s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				op.Actor,
				duration,
			)
		}
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(cmd.Context())
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("New passphrase: ", true)
		if err != nil {
			return err
		}

		if err := app.SetupKeys(cmd.Context(), cfg, passphrase); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the version store",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.MigrateDatabase(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

var dbRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the local database with the latest vault snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		var passphrase string
		if cfg.Encryption.Type == "age" {
			passphrase, err = readPassphrase("Passphrase: ", false)
			if err != nil {
				return err
			}
		}

		version, err := app.RestoreDatabase(cmd.Context(), cfg, passphrase)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored database snapshot at operation #%d\n", version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("actor", "", "Identity recorded on changes (default: config actor)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRestoreCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(themesCmd)
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringP("message", "m", "", "Change summary for the new version")
	syncCmd.Flags().String("dir", "", "Sync the theme from this directory instead of the themes root")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(activeCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(catCmd)
	catCmd.Flags().IntP("version", "v", 0, "Read this version instead of the current one")
	catCmd.Flags().Bool("active", false, "Read PATH from the active theme")
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
}
