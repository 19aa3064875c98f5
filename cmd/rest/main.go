package main

import (
	"context"
	"log"

	"ai-deepsearch-be/internal/bootstrap"
	"ai-deepsearch-be/internal/config"
	"ai-deepsearch-be/internal/server"
	"ai-deepsearch-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer - DISABLED
	// shutdownTracer := tracer.InitTracer()
	// defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (optional, the archive needs it but nothing else does)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Printf("[WARN] Unable to connect to GORM DB: %v (research archive disabled)", err)
		} else {
			gormDB = db
		}
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	// Note: In a larger app, we might use an errgroup or supervisor here
	go func() {
		log.Println("Background: Starting Stream Consumer...")
		if err := container.StreamConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Stream Consumer Error: %v", err)
		}
	}()
	if container.ArchiveConsumerService != nil {
		go func() {
			log.Println("Background: Starting Archive Consumer...")
			if err := container.ArchiveConsumerService.Consume(context.Background()); err != nil {
				log.Printf("Background Archive Consumer Error: %v", err)
			}
		}()
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
