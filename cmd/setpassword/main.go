package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
)

// setpassword stores a bcrypt hash for a customer, replacing any legacy
// reversible credential on the record.
func main() {
	email := flag.String("email", "", "Email of the customer")
	password := flag.String("password", "", "New password for the customer")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Println("email and password are required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Client().Disconnect(context.Background())

	auth := service.NewAuthService(repository.NewCustomerRepository(db))
	if err := auth.SetPassword(ctx, *email, *password); err != nil {
		log.Fatalf("Failed to set password: %v", err)
	}

	fmt.Printf("Password for '%s' updated successfully.\n", *email)
}
