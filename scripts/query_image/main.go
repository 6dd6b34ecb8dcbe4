package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"imagehub/models"
	"imagehub/pkg/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	name := flag.String("name", "", "image name without extension")
	prefix := flag.String("prefix", storage.DefaultPrefix, "bucket folder the blobs live under")
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *name == "" {
		log.Fatal().Msg("--name required")
	}
	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal().Msg("DB_DSN not set in env")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	var rows []models.ImageMetadata
	if err := db.Where("name = ?", *name).Order("id").Find(&rows).Error; err != nil {
		log.Fatal().Err(err).Msg("query image_metadata")
	}
	if len(rows) == 0 {
		fmt.Printf("no image named %q\n", *name)
		os.Exit(1)
	}
	for _, r := range rows {
		fmt.Printf("image id=%d size=%s ext=%q uploaded=%s key=%s/%s\n",
			r.ID, r.Size, r.Extension, r.Uploaded.UTC().Format("2006-01-02T15:04:05Z"), *prefix, r.Filename())
	}
}
