package database

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"backoffice-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// schemaNameRe is the only shape a tenant schema identifier may take. It is
// validated everywhere a schema name is interpolated into SQL.
var schemaNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidSchemaName reports whether s is a safe tenant schema identifier.
func ValidSchemaName(s string) bool {
	return schemaNameRe.MatchString(strings.TrimSpace(s))
}

func Connect() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, relying on environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))

	var err error
	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the ledger maps to the idempotency path.
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
}

// AutoMigrate migrates the public (cross-tenant) tables only. Tenant tables
// are migrated per schema by MigrateTenantSchema.
func AutoMigrate() {
	if err := DB.AutoMigrate(&models.Company{}, &models.User{}); err != nil {
		log.Fatalf("public automigrate failed: %v", err)
	}
}

// GetTenantDB returns the per-request transaction opened by the TenantTx
// middleware. The schema pin lives on that transaction (SET LOCAL), so there
// is deliberately no fallback: handing out a pooled session here would let a
// plain SET leak the search_path onto whatever request gets the connection
// next.
func GetTenantDB(c *fiber.Ctx) (*gorm.DB, error) {
	tx, ok := c.Locals("tx").(*gorm.DB)
	if !ok || tx == nil {
		return nil, fmt.Errorf("no tenant transaction on request")
	}
	return tx, nil
}

// TenantSchemas lists all provisioned tenant schemas (one per company).
func TenantSchemas() ([]string, error) {
	var schemas []string
	err := DB.Model(&models.Company{}).Pluck("schema_name", &schemas).Error
	return schemas, err
}
