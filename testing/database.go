//go:build integration

// Package testing provides database setup for repository integration tests
package testing

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/measurement-reporting/models"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	containerImage    = "postgres:16-alpine"
	containerUser     = "postgres"
	containerPassword = "postgres"
)

// TestDBConfig holds configuration for test database connections
type TestDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// GetTestDBConfig returns the server tests run against. TEST_DB_HOST selects an
// existing server; otherwise a shared postgres container is started once per process.
func GetTestDBConfig(ctx context.Context) (*TestDBConfig, error) {
	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		return &TestDBConfig{
			Host:     host,
			Port:     getEnvAsInt("TEST_DB_PORT", 5432),
			User:     getEnv("TEST_DB_USER", "postgres"),
			Password: getEnv("TEST_DB_PASSWORD", "postgres"),
			SSLMode:  getEnv("TEST_DB_SSL_MODE", "disable"),
		}, nil
	}
	return sharedContainerConfig(ctx)
}

var (
	containerOnce   sync.Once
	containerConfig *TestDBConfig
	containerErr    error
)

func sharedContainerConfig(ctx context.Context) (*TestDBConfig, error) {
	containerOnce.Do(func() {
		container, err := tcpostgres.Run(ctx, containerImage,
			tcpostgres.WithDatabase("postgres"),
			tcpostgres.WithUsername(containerUser),
			tcpostgres.WithPassword(containerPassword),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			_ = testcontainers.TerminateContainer(container)
			containerErr = fmt.Errorf("failed to get postgres container host: %w", err)
			return
		}
		mapped, err := container.MappedPort(ctx, "5432/tcp")
		if err != nil {
			_ = testcontainers.TerminateContainer(container)
			containerErr = fmt.Errorf("failed to get postgres container port: %w", err)
			return
		}
		port, err := strconv.Atoi(mapped.Port())
		if err != nil {
			_ = testcontainers.TerminateContainer(container)
			containerErr = fmt.Errorf("invalid postgres container port %q: %w", mapped.Port(), err)
			return
		}

		// Ryuk reaps the container when the test binary exits
		containerConfig = &TestDBConfig{
			Host:     host,
			Port:     port,
			User:     containerUser,
			Password: containerPassword,
			SSLMode:  "disable",
		}
	})
	return containerConfig, containerErr
}

// TestDB represents a test database instance
type TestDB struct {
	DB     *gorm.DB
	Name   string
	config *TestDBConfig
}

func (c *TestDBConfig) dsn(dbName string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.SSLMode)
	if dbName != "" {
		dsn += " dbname=" + dbName
	}
	return dsn
}

// SetupTestDB creates a new test database with a unique name and migrates the measurement tables
func SetupTestDB() (*TestDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	config, err := GetTestDBConfig(ctx)
	if err != nil {
		return nil, err
	}

	dbName := fmt.Sprintf("msmt_test_%d_%d", time.Now().Unix(), rand.Intn(10000))

	adminDB, err := gorm.Open(postgres.Open(config.dsn("postgres")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer closeGorm(adminDB)

	if err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)).Error; err != nil {
		return nil, fmt.Errorf("failed to create test database %s: %w", dbName, err)
	}

	testDB, err := gorm.Open(postgres.Open(config.dsn(dbName)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database %s: %w", dbName, err)
	}

	tdb := &TestDB{DB: testDB, Name: dbName, config: config}
	if err := testDB.AutoMigrate(models.MeasurementTables()...); err != nil {
		_ = tdb.TeardownTestDB()
		return nil, fmt.Errorf("failed to migrate test database %s: %w", dbName, err)
	}

	return tdb, nil
}

// TeardownTestDB drops the test database and closes connections
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	closeGorm(tdb.DB)

	adminDB, err := gorm.Open(postgres.Open(tdb.config.dsn("postgres")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL for cleanup: %v", err)
		return err
	}
	defer closeGorm(adminDB)

	// Force disconnect all connections to the test database
	err = adminDB.Exec(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = ? AND pid <> pg_backend_pid()",
		tdb.Name).Error
	if err != nil {
		log.Printf("Warning: failed to terminate connections to test database %s: %v", tdb.Name, err)
	}

	if err := adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", tdb.Name)).Error; err != nil {
		log.Printf("Warning: failed to drop test database %s: %v", tdb.Name, err)
		return err
	}

	return nil
}

// ClearAllTables removes all data from the measurement tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	tables := []string{
		models.DebugReport{}.TableName(),
		models.EventReport{}.TableName(),
		models.AggregateReport{}.TableName(),
		models.AggregateEncryptionKey{}.TableName(),
		models.Trigger{}.TableName(),
		models.Source{}.TableName(),
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// TestWithDB sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
