package main

import (
	"log"
	"os"

	"quizgenius-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("quizgenius: %v", err)
		os.Exit(1)
	}
}
