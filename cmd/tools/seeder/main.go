package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/crm-quotes/internal/catalog"
)

// seedNamespace keeps seeded ids stable so the seeder can be re-run safely.
var seedNamespace = uuid.MustParse("6f1c2a54-8d0e-4c3b-9a57-2e4b1d0c9f10")

type optionSeed struct {
	Name  string
	Price string
}

type formulaSeed struct {
	Name         string
	Installation string
	Maintenance  string
	Hotline      string
	Options      []optionSeed
}

var formulas = []formulaSeed{
	{Name: "Essentiel", Installation: "79.00", Maintenance: "29.00", Hotline: "9.90"},
	{
		Name: "Sérénité", Installation: "100.00", Maintenance: "50.00", Hotline: "20.00",
		Options: []optionSeed{{"Sauvegarde cloud", "15.00"}, {"Astreinte week-end", "25.00"}},
	},
	{
		Name: "Premium", Installation: "250.00", Maintenance: "90.00", Hotline: "35.00",
		Options: []optionSeed{{"Sauvegarde cloud", "15.00"}, {"Technicien dédié", "120.00"}, {"Supervision 24/7", "60.00"}},
	},
}

var equipment = []struct {
	Name  string
	Price string
}{
	{"Routeur fibre", "40.00"},
	{"Switch 24 ports", "89.90"},
	{"Téléphone IP", "12.50"},
	{"Borne Wi-Fi", "35.00"},
	{"Pare-feu", "149.00"},
	{"Onduleur", "59.00"},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	if err := seedFormulas(ctx, db); err != nil {
		log.Fatalf("Failed to seed formulas: %v", err)
	}
	if err := seedEquipment(ctx, db); err != nil {
		log.Fatalf("Failed to seed equipment: %v", err)
	}
	invalidateCatalog(ctx)

	log.Println("Seeding completed successfully!")
}

func seedID(kind, name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+name))
}

func seedFormulas(ctx context.Context, db *sql.DB) error {
	log.Println("Seeding formulas...")
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range formulas {
		id := seedID("formula", f.Name)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO formulas (id, name, installation_price, maintenance_price, hotline_price)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				installation_price = EXCLUDED.installation_price,
				maintenance_price = EXCLUDED.maintenance_price,
				hotline_price = EXCLUDED.hotline_price,
				updated_at = now()`,
			id, f.Name, f.Installation, f.Maintenance, f.Hotline)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM formula_options WHERE formula_id = $1`, id); err != nil {
			return err
		}
		for pos, o := range f.Options {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO formula_options (id, formula_id, name, price_ht, position)
				VALUES ($1, $2, $3, $4, $5)`,
				seedID("option", f.Name+"/"+o.Name), id, o.Name, o.Price, pos)
			if err != nil {
				return err
			}
		}
		log.Printf("  formula %s (%s) with %d options", f.Name, id, len(f.Options))
	}
	return tx.Commit()
}

func seedEquipment(ctx context.Context, db *sql.DB) error {
	log.Println("Seeding equipment...")
	for _, e := range equipment {
		id := seedID("equipment", e.Name)
		_, err := db.ExecContext(ctx, `
			INSERT INTO equipment (id, name, price_ht)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price_ht = EXCLUDED.price_ht`,
			id, e.Name, e.Price)
		if err != nil {
			return err
		}
	}
	log.Printf("  %d equipment items", len(equipment))
	return nil
}

// invalidateCatalog drops cached catalog entries so the API serves the new prices.
func invalidateCatalog(ctx context.Context) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("Skipping cache invalidation: %v", err)
		return
	}
	client := redis.NewClient(opts)
	defer client.Close()
	if err := catalog.NewCache(client, 0).DeletePrefix(ctx, "catalog:"); err != nil {
		log.Printf("Cache invalidation failed: %v", err)
		return
	}
	log.Println("Catalog cache invalidated")
}
