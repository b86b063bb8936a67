package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"timeline-editor/internal/config"
	"timeline-editor/internal/logging"
	"timeline-editor/internal/probe"
)

func main() {
	godotenv.Load()

	file := flag.String("f", "timeline.json", "timeline payload to load and save")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	logging.Setup(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})

	sh := NewShell(*file, os.Stdout, probe.New(cfg.FFprobePath, cfg.ProbeTimeout), cfg.FallbackDuration, cfg.Tuning)
	if _, err := os.Stat(*file); err == nil {
		if err := sh.load(*file); err != nil {
			log.Fatalf("Failed to load %s: %v", *file, err)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	if err := sh.Run(filepath.Join(homeDir, ".editor_history")); err != nil {
		log.Fatal(err)
	}
}
