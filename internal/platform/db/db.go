package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const driverName = "mysql"

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type SweepConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	Addr        string         `yaml:"addr"`
	DB          DatabaseConfig `yaml:"database"`
	Certificate Certs          `yaml:"certificate"`
	Sweep       SweepConfig    `yaml:"sweep"`
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Sweep.IntervalSeconds <= 0 {
		cfg.Sweep.IntervalSeconds = 60
	}
	return &cfg, nil
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	db.SetMaxOpenConns(80)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		item_id     BIGINT NOT NULL AUTO_INCREMENT,
		name        VARCHAR(255) NOT NULL,
		asset_tag   VARCHAR(255) NULL,
		description VARCHAR(1000) NULL,
		PRIMARY KEY (item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stocks (
		stock_id      BIGINT NOT NULL AUTO_INCREMENT,
		item_id       BIGINT NOT NULL,
		total_qty     INT NOT NULL,
		available_qty INT NOT NULL,
		PRIMARY KEY (stock_id),
		UNIQUE KEY uq_stocks_item (item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		movement_id     BIGINT NOT NULL AUTO_INCREMENT,
		movement_ulid   CHAR(26) NOT NULL,
		item_id         BIGINT NOT NULL,
		item_name       VARCHAR(512) NULL,
		quantity        INT NOT NULL,
		kind            VARCHAR(20) NOT NULL,
		requester       VARCHAR(255) NOT NULL,
		checked_out_at  DATETIME NOT NULL,
		due_on          DATE NULL,
		returned_at     DATETIME NULL,
		deadline_status VARCHAR(20) NOT NULL,
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (movement_id),
		UNIQUE KEY uq_movements_ulid (movement_ulid),
		KEY idx_movements_open (item_id, returned_at, checked_out_at)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		audit_id    BIGINT NOT NULL AUTO_INCREMENT,
		action      VARCHAR(64) NOT NULL,
		item_id     BIGINT NULL,
		actor       VARCHAR(255) NOT NULL,
		detail      TEXT NULL,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (audit_id),
		KEY idx_audit_item (item_id, recorded_at)
	)`,
}

// Migrate は起動時にスキーマを適用する（存在すれば何もしない）
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("スキーマ適用に失敗: %w", err)
		}
	}
	return nil
}
