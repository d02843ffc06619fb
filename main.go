package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/rankworks/cv-ranker/cmd"
)

func main() {
	// Local development keys live in .env; a missing file is fine.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
