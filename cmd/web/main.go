package main

import (
	"log"

	"github.com/Bernard-Murphy/dbay-public/internal/app"
	"github.com/Bernard-Murphy/dbay-public/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	application.Run()
}
