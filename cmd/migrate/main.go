package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/logger"
	"whatsapp-assistant/internal/models"
)

func main() {
	var (
		logLevel   string
		seedPhone  string
		seedTenant string
	)
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&seedPhone, "phone", "+260971234567", "Owner phone number for the seed command")
	flag.StringVar(&seedTenant, "tenant", "Demo Hardware", "Tenant name for the seed command")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: logLevel, Format: "console"})
	defer func() { _ = log.Sync() }()

	cfg := config.LoadConfig()
	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	switch args[0] {
	case "up":
		if err := database.Migrate(db); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Schema is up to date")
	case "seed":
		if err := database.Migrate(db); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		if err := seed(db, seedTenant, seedPhone); err != nil {
			log.Fatal("Seed failed", zap.Error(err))
		}
		log.Info("Seeded demo tenant", zap.String("tenant", seedTenant), zap.String("phone", seedPhone))
	case "copy":
		if len(args) < 2 {
			printUsage()
			os.Exit(1)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		copyFromSQLite(db, args[1], log)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [flags] <command>

Commands:
  up                 create or update every table
  seed               add a demo tenant, owner mapping and products
  copy <sqlite.db>   copy all rows from a sqlite database into the configured one

Flags:`)
	flag.PrintDefaults()
}

func seed(db *gorm.DB, tenantName, phone string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		tenant := models.Tenant{Name: tenantName, ImpactEnabled: true, ImpactLabel: "trees planted"}
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.SenderMapping{
			TenantID:    tenant.ID,
			UserID:      tenant.ID,
			PhoneNumber: phone,
			Role:        "owner",
			DisplayName: "Owner",
			IsActive:    true,
		}).Error; err != nil {
			return err
		}
		products := []models.Product{
			{TenantID: tenant.ID, Name: "Cement", Unit: "bags", Price: decimal.NewFromInt(500), StockQuantity: 100, TrackStock: true, ImpactPerUnit: 1},
			{TenantID: tenant.ID, Name: "River Sand", Unit: "tonnes", Price: decimal.NewFromInt(350), StockQuantity: 20, TrackStock: true},
			{TenantID: tenant.ID, Name: "Delivery", Price: decimal.NewFromInt(150)},
		}
		return tx.Create(&products).Error
	})
}

// copyFromSQLite moves a local development database into the configured
// one, table by table. Rows that already exist are skipped.
func copyFromSQLite(dest *gorm.DB, path string, log *zap.Logger) {
	source, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to open source sqlite database", zap.Error(err))
	}
	log.Info("Starting data copy", zap.String("source", path))

	for _, model := range models.All() {
		// a pointer to an empty slice of the model's type
		rows := reflect.New(reflect.SliceOf(reflect.TypeOf(model).Elem())).Interface()
		table := model.(interface{ TableName() string }).TableName()

		if err := source.Find(rows).Error; err != nil {
			log.Error("Read failed", zap.String("table", table), zap.Error(err))
			continue
		}
		n := reflect.ValueOf(rows).Elem().Len()
		if n == 0 {
			log.Info("Nothing to copy", zap.String("table", table))
			continue
		}

		err := dest.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 500).Error
		})
		if err != nil {
			log.Error("Write failed", zap.String("table", table), zap.Error(err))
			continue
		}
		log.Info("Copied table", zap.String("table", table), zap.Int("rows", n))
	}
	log.Info("Copy completed")
}
