package datastore

import (
	"fmt"
	"net"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// NewMySQLStore returns an unopened store for settings.Output.MySQL.
func NewMySQLStore(settings *conf.Settings) *MySQLStore {
	return &MySQLStore{DataStore: DataStore{Logger: logger.Global().Module("datastore")}, Settings: settings}
}

func validateMySQLConfig(settings *conf.Settings) error {
	m := settings.Output.MySQL
	if m.Host == "" || m.Database == "" || m.Username == "" {
		return dbError(fmt.Errorf("mysql host, database and username must be set"), "validate_mysql_config")
	}
	return nil
}

// mysqlDSN builds the connection string for settings.
func mysqlDSN(settings *conf.Settings) string {
	m := settings.Output.MySQL
	cfg := gomysql.NewConfig()
	cfg.User = m.Username
	cfg.Passwd = m.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(m.Host, m.Port)
	cfg.DBName = m.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open sets up the MySQL database connection
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	dsn := mysqlDSN(store.Settings)
	db, err := gorm.Open(mysql.Open(dsn), store.gormConfig())
	if err != nil {
		store.logger().Error("failed to open MySQL database",
			logger.String("host", store.Settings.Output.MySQL.Host),
			logger.String("port", store.Settings.Output.MySQL.Port),
			logger.String("database", store.Settings.Output.MySQL.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open_mysql")
	}

	store.DB = db
	m := store.Settings.Output.MySQL
	return performAutoMigration(db, store.logger(), "MySQL", net.JoinHostPort(m.Host, m.Port)+"/"+m.Database)
}

// Close closes the MySQL database connection.
func (store *MySQLStore) Close() error {
	return closeDB(store.DB)
}
