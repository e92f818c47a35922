/*
Copyright © 2025 tieubaoca
*/
package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/tieubaoca/context-curator/cmd"
)

func main() {
	cmd.Execute()
}

func init() {
	// Secrets may come from the environment alone.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}
}
