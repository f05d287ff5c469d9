// shopctl 商城运维命令行：数据库迁移、统计对账、商品导入导出、管理员初始化
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"github.com/wyfcoding/pkg/databases"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/redis"
	"github.com/wyfcoding/storefront/internal/app"
	catalogdomain "github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/mq"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "shopctl",
		Short:         "storefront operations tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/storefront/config.toml", "path to config file")
	rootCmd.AddCommand(
		migrateCommand(),
		reconcileCommand(),
		productsCommand(),
		adminCommand(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.InitLogger("shopctl", "cli", cfg.Log.Level)
	return cfg, nil
}

// openDB 与 API 服务相同的连接治理，指标只在进程内采集
func openDB(cfg *config.Config, m *metrics.Metrics) (*databases.DB, error) {
	dbWrapper, err := databases.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logging.Default(), m)
	if err != nil {
		return nil, err
	}
	dbWrapper.RawDB().Config.TranslateError = true
	return dbWrapper, nil
}

// withContainer 打开数据库并组装服务，fn 返回后释放资源
func withContainer(fn func(c *app.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m := metrics.NewMetrics("shopctl")
	dbWrapper, err := openDB(cfg, m)
	if err != nil {
		return err
	}
	defer dbWrapper.Close()

	deps := app.Deps{Config: cfg, DB: dbWrapper.RawDB(), Tx: db.BreakerTransactor{DB: dbWrapper}, Metrics: m}
	if cfg.Storefront.RedisEnabled {
		client, closeRedis, err := redis.NewClient(&cfg.Data.Redis, logging.Default())
		if err != nil {
			return err
		}
		defer closeRedis()
		deps.Redis = client
	}

	var publisher mq.Publisher = mq.LogPublisher{}
	if cfg.Storefront.KafkaEnabled {
		publisher = mq.NewKafkaPublisher(kafka.NewProducer(cfg.MessageQueue.Kafka, logging.Default(), m), cfg.MessageQueue.Kafka.Topic)
	}
	defer publisher.Close()
	deps.Publisher = publisher

	c, err := app.New(deps)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply sql migrations",
	}

	run := func(step func(m *migrate.Migrate) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Data.Database.Driver != "mysql" {
			return fmt.Errorf("sql migrations target mysql, driver %q should use storefront.auto_migrate", cfg.Data.Database.Driver)
		}
		m, err := migrate.New(
			fmt.Sprintf("file://%s", cfg.Storefront.MigrationsDir),
			fmt.Sprintf("mysql://%s", migrationDSN(cfg.Data.Database.DSN)),
		)
		if err != nil {
			return err
		}
		defer m.Close()

		err = step(m)
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No change in migration")
			return nil
		}
		return err
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "migrate all the way up",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := run(func(m *migrate.Migrate) error { return m.Up() }); err != nil {
					return err
				}
				fmt.Println("Migrated up")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "roll back one migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := run(func(m *migrate.Migrate) error { return m.Steps(-1) }); err != nil {
					return err
				}
				fmt.Println("Migrated down one step")
				return nil
			},
		},
		&cobra.Command{
			Use:   "auto",
			Short: "create tables from entity definitions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dbWrapper, err := openDB(cfg, metrics.NewMetrics("shopctl"))
				if err != nil {
					return err
				}
				defer dbWrapper.Close()
				return app.AutoMigrate(cmd.Context(), dbWrapper.RawDB())
			},
		},
	)
	return cmd
}

func reconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "rebuild product statistics from the purchase ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *app.Container) error {
				report, err := c.Reconciler.ReconcileAllStatistics(cmd.Context())
				if err != nil {
					return err
				}
				if err := printJSON(report); err != nil {
					return err
				}
				if len(report.Failures) > 0 {
					return fmt.Errorf("%d of %d products failed to reconcile", len(report.Failures), report.Total)
				}
				return nil
			})
		},
	}
}

func productsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "import or export the product catalog as csv",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "write all products as csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return withContainer(func(c *app.Container) error {
				n, err := c.ProductCSV.ExportProducts(cmd.Context(), catalogdomain.ProductFilter{}, w)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Exported %d products\n", n)
				return nil
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "create or update products from csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withContainer(func(c *app.Container) error {
				report, err := c.ProductCSV.ImportProducts(cmd.Context(), f)
				if err != nil {
					return err
				}
				if err := printJSON(report); err != nil {
					return err
				}
				if report.Failed > 0 {
					return fmt.Errorf("%d rows failed", report.Failed)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(export, importCmd)
	return cmd
}

func adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "manage administrator accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create [username] [password]",
		Short: "create an administrator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *app.Container) error {
				admin, err := c.AccountCommands.CreateAdmin(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Printf("Created administrator %s (%s)\n", admin.Username, admin.ID)
				return nil
			})
		},
	})
	return cmd
}

// migrationDSN 迁移文件包含多条语句
func migrationDSN(dsn string) string {
	if strings.Contains(dsn, "multiStatements=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&multiStatements=true"
	}
	return dsn + "?multiStatements=true"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
