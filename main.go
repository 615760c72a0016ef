package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hamzapatwa/PitchPerfectly/db"
	"github.com/hamzapatwa/PitchPerfectly/reference"
	"github.com/hamzapatwa/PitchPerfectly/separation"
	"github.com/hamzapatwa/PitchPerfectly/utils"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

func main() {
	err := utils.CreateFolder("tmp")
	if err != nil {
		logger := utils.GetLogger()
		err := xerrors.New(err)
		ctx := context.Background()
		logger.ErrorContext(ctx, "Failed create tmp dir.", slog.Any("error", err))
	}

	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' or 'prepare' subcommand")
		os.Exit(1)
	}
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "Protocol to use (http or https)")
		port := serveCmd.String("p", "5000", "Port to use")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port)
	case "prepare":
		prepareCmd := flag.NewFlagSet("prepare", flag.ExitOnError)
		songID := prepareCmd.String("song", "", "Song ID to store the reference under")
		karaokePath := prepareCmd.String("karaoke", "", "Path to the karaoke (instrumental) WAV")
		studioPath := prepareCmd.String("studio", "", "Path to the studio recording WAV")
		prepareCmd.Parse(os.Args[2:])
		prepare(*songID, *karaokePath, *studioPath)
	default:
		fmt.Println("Expected 'serve' or 'prepare' subcommand")
		os.Exit(1)
	}
}

// prepare builds and stores one reference track from the command line, the
// offline half of the pipeline.
func prepare(songID, karaokePath, studioPath string) {
	if songID == "" || karaokePath == "" || studioPath == "" {
		log.Fatal("prepare requires -song, -karaoke and -studio")
	}

	dbPath := utils.GetEnv("KARAOKE_DB_PATH", "data/karaoke.db")
	dbClient, err := db.NewSQLiteClient(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer dbClient.Close()

	var separator *separation.Client
	if separationURL := utils.GetEnv("SEPARATION_SERVICE_URL", ""); separationURL != "" {
		separator = separation.NewClient(separationURL)
	}

	builder := reference.NewBuilder(separator, dbClient)
	track, err := builder.Build(songID, karaokePath, studioPath)
	if err != nil {
		log.Fatalf("reference build failed: %v", err)
	}

	log.Printf("Stored reference for %s: quality=%.3f, duration=%.1fs, key=%s, tempo=%.1f BPM, %d notes, %d phrases\n",
		track.SongID, track.Config.AlignmentQuality, track.Duration(),
		track.Config.Key, track.Config.Tempo, len(track.NoteBins), len(track.Phrases))
}
