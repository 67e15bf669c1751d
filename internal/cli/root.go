package cli

import (
	"fmt"
	"strings"

	"quiz-host/internal/config"
	"quiz-host/internal/logger"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "QUIZHOST"

// env is what every subcommand receives once flags, environment and config file are merged.
type env struct {
	cfg config.Config
	log *logrus.Logger
}

type rootFlags struct {
	configPath  string
	serverURL   string
	storage     string
	storagePath string
	redisAddr   string
	postgresURL string
	logLevel    string
	logFormat   string
}

// Execute runs the CLI.
func Execute() error {
	// a missing .env is normal
	_ = godotenv.Load()
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	e := &env{}

	cmd := &cobra.Command{
		Use:           "quiz-host",
		Short:         "Host live quiz games from the terminal",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bindEnv(cmd.Flags())
			return e.load(cmd.Flags(), flags)
		},
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVar(&flags.configPath, "config", "config.yaml", "path to YAML config (env: QUIZHOST_CONFIG)")
	fs.StringVar(&flags.serverURL, "server-url", "", "game server base url (env: QUIZHOST_SERVER_URL)")
	fs.StringVar(&flags.storage, "storage", "", "quiz storage driver: file, memory, redis or postgres (env: QUIZHOST_STORAGE)")
	fs.StringVar(&flags.storagePath, "storage-path", "", "quiz file for the file driver (env: QUIZHOST_STORAGE_PATH)")
	fs.StringVar(&flags.redisAddr, "redis-addr", "", "redis address (env: QUIZHOST_REDIS_ADDR)")
	fs.StringVar(&flags.postgresURL, "postgres-url", "", "postgres connection url (env: QUIZHOST_POSTGRES_URL)")
	fs.StringVar(&flags.logLevel, "log-level", "", "log level (env: QUIZHOST_LOG_LEVEL)")
	fs.StringVar(&flags.logFormat, "log-format", "", "log format: text or json (env: QUIZHOST_LOG_FORMAT)")

	cmd.AddCommand(newHostCmd(e))
	cmd.AddCommand(newQuizzesCmd(e))
	cmd.AddCommand(newHistoryCmd(e))
	cmd.AddCommand(newDevServerCmd(e))
	cmd.AddCommand(newMigrateCmd(e))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// bindEnv lets QUIZHOST_* variables stand in for flags the user did not pass.
func bindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func (e *env) load(fs *pflag.FlagSet, flags *rootFlags) error {
	cfg, err := config.Load(flags.configPath, !fs.Changed("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	override(&cfg.Server.URL, flags.serverURL)
	override(&cfg.Storage.Driver, flags.storage)
	override(&cfg.Storage.Path, flags.storagePath)
	override(&cfg.Redis.Addr, flags.redisAddr)
	override(&cfg.Postgres.URL, flags.postgresURL)
	override(&cfg.Log.Level, flags.logLevel)
	override(&cfg.Log.Format, flags.logFormat)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	e.cfg = cfg
	e.log = logger.New(cfg.Log.Level, cfg.Log.Format)
	return nil
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
