package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"polyglot/internal/delivery/server/bootstrap"
	"polyglot/internal/infra/auth/crypto"
	"polyglot/internal/shared/config"
	"polyglot/internal/shared/logging"
)

const redacted = "********"

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:           "polyglot-server",
		Short:         "Multilingual feedback API",
		Long:          "polyglot-server analyzes free-text feedback with an LLM and serves the admin dashboard API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./polyglot.yaml or ~/.polyglot/polyglot.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = opts.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newServeCommand(opts),
		newConfigCommand(opts),
		newHashPasswordCommand(),
		newVersionCommand(),
	)
	return root
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(config.WithViper(o.v), config.WithConfigFile(o.configFile))
	if err != nil {
		return config.Config{}, err
	}
	format := cfg.Log.Format
	if format == "" && !cfg.IsDevelopment() {
		format = "json"
	}
	logging.Configure(logging.Options{Level: cfg.Log.Level, Format: format})
	return cfg, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := logging.NewComponentLogger("Main")
			logger.Info("Starting polyglot-server %s (environment=%s, port=%s)", version, environmentLabel(cfg), cfg.Server.Port)
			return bootstrap.RunServer(cmd.Context(), cfg, version)
		},
	}
	cmd.Flags().String("port", "", "listen port")
	cmd.Flags().String("environment", "", "deployment environment (development, production)")
	cmd.Flags().String("database-url", "", "Postgres connection URL")
	_ = opts.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = opts.v.BindPFlag("server.environment", cmd.Flags().Lookup("environment"))
	_ = opts.v.BindPFlag("database.url", cmd.Flags().Lookup("database-url"))
	return cmd
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	var showSecrets bool
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !showSecrets {
				cfg = redactConfig(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
	printCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secrets in clear text")
	cmd.AddCommand(printCmd)
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password for manual insertion into admin_users",
		Long:  "Reads a password from the terminal (or one line of stdin) and prints its argon2id hash.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := crypto.NewHasher().Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		raw, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func redactConfig(cfg config.Config) config.Config {
	for _, secret := range []*string{&cfg.Auth.JWTSecret, &cfg.Auth.BootstrapPassword, &cfg.LLM.APIKey} {
		if *secret != "" {
			*secret = redacted
		}
	}
	if parsed, err := url.Parse(cfg.Database.URL); err == nil && parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), redacted)
			cfg.Database.URL = parsed.String()
		}
	}
	return cfg
}

func environmentLabel(cfg config.Config) string {
	if cfg.Server.Environment == "" {
		return "development"
	}
	return cfg.Server.Environment
}
