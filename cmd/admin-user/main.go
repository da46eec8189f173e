// Command admin-user creates or resets back-office accounts.
//
//	admin-user -email ops@example.org -password '...' [-name "Ops"] [-role reviewer]
//	admin-user -rehash
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"admissions-api/config"
	"admissions-api/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		email    string
		password string
		name     string
		role     string
		rehash   bool
	)
	flag.StringVar(&email, "email", "", "account email")
	flag.StringVar(&password, "password", os.Getenv("ADMIN_PASSWORD"), "new password (defaults to $ADMIN_PASSWORD)")
	flag.StringVar(&name, "name", "", "display name (kept when empty)")
	flag.StringVar(&role, "role", "admin", "admin or reviewer")
	flag.BoolVar(&rehash, "rehash", false, "bcrypt any stored passwords that are still plaintext")
	flag.Parse()

	if !rehash && email == "" {
		flag.Usage()
		os.Exit(1)
	}

	settings := config.LoadSettings()
	db, err := config.InitDB(settings)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := config.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	auth := services.NewAuthService(db, settings.JWTSecret)

	if rehash {
		updated, err := auth.RehashPlaintext(ctx)
		if err != nil {
			log.Fatalf("rehash failed: %v", err)
		}
		fmt.Printf("Rehashed %d account(s)\n", updated)
	}

	if email == "" {
		return
	}
	created, err := auth.SetAdmin(ctx, name, email, password, role)
	if err != nil {
		if se, ok := services.AsError(err); ok && se.Kind == services.KindValidation {
			for _, f := range se.Fields {
				fmt.Fprintf(os.Stderr, "%s: %s\n", f.Field, f.Error)
			}
			os.Exit(1)
		}
		log.Fatalf("save admin: %v", err)
	}
	if created {
		fmt.Printf("Created %s account %s\n", role, email)
	} else {
		fmt.Printf("Reset password for %s\n", email)
	}
}
