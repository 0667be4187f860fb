// Command chuangobridge bridges Chuango / DreamCatcher Life alarm hubs
// from the vendor cloud to a local REST and WebSocket API.
//
// Subcommands:
//
//	run      log in, follow every shared hub over MQTT and serve the API
//	devices  log in once and print the shared hubs
//	token    mint a bearer token for the local API
//	version  print build information
package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/chuango-bridge/migrations"

	"github.com/nerrad567/chuango-bridge/internal/account"
	"github.com/nerrad567/chuango-bridge/internal/api"
	"github.com/nerrad567/chuango-bridge/internal/audit"
	"github.com/nerrad567/chuango-bridge/internal/bridge"
	"github.com/nerrad567/chuango-bridge/internal/cloud"
	"github.com/nerrad567/chuango-bridge/internal/directory"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/database"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/chuango-bridge/internal/session"
	"github.com/nerrad567/chuango-bridge/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "chuangobridge",
		Short:         "Chuango / DreamCatcher Life alarm cloud bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to the YAML configuration file")

	root.AddCommand(
		runCmd(&configPath),
		devicesCmd(&configPath),
		tokenCmd(&configPath),
		versionCmd(),
	)
	return root
}

// getConfigPath returns the configuration file path.
// Uses CHUANGO_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CHUANGO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

func devicesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		Aliases: []string{"ls", "list"},
		Short:   "Log in and list the hubs shared with the account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listDevices(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}

func tokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the local API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl == 0 {
				ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}
			tok, err := api.GenerateToken(subject, scopes, cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local", "token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{api.ScopeRead}, "granted scopes (read, control)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chuangobridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// app holds the components shared by run and devices.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	db      *database.DB
	cloud   *cloud.Client
	account *account.Session
}

// setup loads configuration, opens the database and restores the
// account session. The caller closes app.db.
func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	client := cloud.New(cfg.Cloud, nil)
	client.SetLogger(log)

	sess, err := account.NewSession(ctx, client, store.NewSQLite(db.DB), cfg.Account)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("restoring account session: %w", err)
	}
	sess.SetLogger(log)

	return &app{cfg: cfg, log: log, db: db, cloud: client, account: sess}, nil
}

// run is the bridge service, separated from main for testability.
func run(ctx context.Context, configPath string) error {
	a, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	log := a.log
	defer func() {
		log.Info("closing database")
		if closeErr := a.db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("starting chuango bridge", "version", version, "commit", commit, "build_date", date)

	deps := bridge.Deps{
		Account:         a.account,
		Lister:          a.cloud,
		Dial:            session.DialWith(mqtt.NewDialer(a.cfg.MQTT)),
		Session:         session.OptionsFromConfig(a.cfg.MQTT),
		RefreshInterval: a.cfg.GetRefreshInterval(),
		Audit:           audit.NewSQLiteRepository(a.db.DB),
		Logger:          log,
	}

	if a.cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, a.cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		deps.History = influxClient
		log.Info("InfluxDB connected", "url", a.cfg.InfluxDB.URL, "bucket", a.cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	b := bridge.New(deps)

	if a.cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:   a.cfg.API,
			WS:       a.cfg.WebSocket,
			Security: a.cfg.Security,
			Logger:   log,
			Backend:  b,
			Audit:    deps.Audit,
			Version:  version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("running bridge: %w", err)
	}
	log.Info("chuango bridge stopped")
	return nil
}

// listDevices refreshes the shared device list once and prints it.
func listDevices(ctx context.Context, configPath string, out io.Writer) error {
	a, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.db.Close()

	dir := directory.New(a.cloud, a.account, 0)
	dir.SetLogger(a.log)
	devices, err := dir.Refresh(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tBROKER\tROOM")
	for _, id := range slices.Sorted(maps.Keys(devices)) {
		d := devices[id]
		broker := d.MQTTDomain
		if broker == "" {
			broker = d.MQTTIP
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s:%d\t%s\n", d.ID, d.DisplayName(), d.TypeCode(), broker, d.MQTTPort, d.RoomName)
	}
	return w.Flush()
}
