package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/casapps/casrecipes/src/internal/cache"
	"github.com/casapps/casrecipes/src/internal/config"
	"github.com/casapps/casrecipes/src/internal/database"
	"github.com/casapps/casrecipes/src/internal/errors"
	importer "github.com/casapps/casrecipes/src/internal/import"
	"github.com/casapps/casrecipes/src/internal/logging"
	"github.com/casapps/casrecipes/src/internal/server"
	"github.com/casapps/casrecipes/src/internal/services"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "casrecipes",
		Short:         "Recipe sharing API server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newCreateSuperuserCmd(),
		newImportDataCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads and validates configuration and prepares the data directories
func loadConfig() (*viper.Viper, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Set("version", Version)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.EnsureDirectories(cfg); err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.GetString("log.level"),
		Format: cfg.GetString("log.format"),
	})
	return cfg, nil
}

// openDatabase connects and brings the schema up to date
func openDatabase(cfg *viper.Viper) (*gorm.DB, func(), error) {
	db, err := database.Initialize(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.MigrateDB(db); err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return db, closeFn, nil
}

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Set("server.port", port)
			}

			db, closeDB, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			cacheManager := cache.NewCacheManager(cfg)
			defer cacheManager.Close()

			srv := server.New(cfg, db, cacheManager)
			address := net.JoinHostPort(cfg.GetString("server.host"), strconv.Itoa(cfg.GetInt("server.port")))

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(address)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case sig := <-quit:
				logging.Info().Str("signal", sig.String()).Msg("Shutting down server")
			}

			timeout := cfg.GetDuration("server.shutdown_timeout")
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logging.Info().Msg("Server exited")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, closeDB, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer closeDB()
			logging.Info().Str("database", cfg.GetString("database.type")).Msg("Migrations applied")
			return nil
		},
	}
}

func newCreateSuperuserCmd() *cobra.Command {
	var input services.RegisterInput
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			input.Password = password

			db, closeDB, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			users := services.NewUserService(db, cfg, services.NewMembershipFilter(db))
			user, err := users.CreateSuperuser(cmd.Context(), input)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %d)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Email, "email", "", "email address")
	cmd.Flags().StringVar(&input.Username, "username", "", "username")
	cmd.Flags().StringVar(&input.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "", "last name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("username")
	return cmd
}

// readPassword prompts twice on a terminal, or reads one line when piped
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	fd := int(syscall.Stdin)
	if fromStdin || !term.IsTerminal(fd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(out, "Password (again): ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

// describe flattens field errors into a single line for the terminal
func describe(err error) error {
	var ce *errors.CustomError
	if !stderrors.As(err, &ce) {
		return err
	}
	fields := ce.Fields()
	if len(fields) == 0 {
		return err
	}
	var parts []string
	for field, msgs := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, " ")))
	}
	sort.Strings(parts)
	return fmt.Errorf("%s (%s)", ce.Message, strings.Join(parts, "; "))
}

func newImportDataCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import-data",
		Short: "Load tags, users, ingredients and subscriptions from CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, closeDB, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			summary, err := importer.NewImporter(db).ImportDir(cmd.Context(), dir)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Imported %d tags, %d users, %d ingredients, %d subscriptions (%d already present)\n",
				summary.Tags, summary.Users, summary.Ingredients, summary.Subscriptions, summary.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "data", "directory holding the CSV files")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CasRecipes v%s\n", Version)
		},
	}
}
