package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	var root = &cobra.Command{Use: "kbase"}

	root.AddCommand(serveCMD(), migrateCMD())
	_ = root.Execute()
}
