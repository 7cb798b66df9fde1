package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/app"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/db"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

func main() {
	_ = godotenv.Load()

	cfg := app.LoadConfig()

	dbConn, err := db.OpenWithConfig(context.Background(), db.Driver(cfg.DBDriver), cfg.DBDSN, db.Config{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Seeds must exist before the first cipher arrives.
	seeds := roster.NewService(dbConn, rand.New(rand.NewSource(time.Now().UnixNano())))
	if created, err := seeds.EnsureSeeds(context.Background()); err != nil {
		log.Printf("seed generation error: %v", err)
		os.Exit(1)
	} else if created > 0 {
		log.Printf("generated %d roster seeds", created)
	}

	r, err := app.NewRouter(cfg, dbConn)
	if err != nil {
		log.Printf("router error: %v", err)
		os.Exit(1)
	}

	log.Printf("quiz host listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
