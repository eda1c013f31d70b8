package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"sentinelvision/internal/model"
	"sentinelvision/internal/repository/sqlite"
	"sentinelvision/internal/service/storage"
)

func main() {
	keyFrameDir := flag.String("dir", storage.DefaultDirectory, "Directory containing key frames")
	dbPath := flag.String("db", "data/keyframes.db", "Database path")
	runID := flag.String("run", "migrated", "Run id recorded for re-indexed key frames")
	flag.Parse()

	fmt.Printf("Indexing key frames from %s into %s\n", *keyFrameDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	entries, err := os.ReadDir(*keyFrameDir)
	if err != nil {
		log.Fatalf("Failed to read key frame directory: %v", err)
	}

	var frames []model.KeyFrame
	skipped := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		_, ts, ok := storage.ParseFilename(entry.Name())
		if !ok {
			log.Printf("⚠️  Skipping %s: not a key frame name", entry.Name())
			skipped++
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("⚠️  Failed to get info for %s: %v", entry.Name(), err)
			skipped++
			continue
		}

		// Scores and distances are not recoverable from the file.
		frames = append(frames, model.KeyFrame{
			Filename:  entry.Name(),
			RunID:     *runID,
			Timestamp: ts,
			FilePath:  filepath.Join(*keyFrameDir, entry.Name()),
			FileSize:  info.Size(),
		})
	}

	if len(frames) == 0 {
		fmt.Println("No key frames found to index")
		return
	}

	repo := sqlite.NewKeyFrameRepository(db)
	fmt.Printf("Inserting %d key frames into database...\n", len(frames))
	inserted, err := repo.InsertBatch(frames)
	if err != nil {
		log.Fatalf("Failed to insert key frames: %v", err)
	}

	fmt.Printf("✅ Indexed %d new key frames (%d already catalogued)\n", inserted, len(frames)-inserted)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid name or errors)\n", skipped)
	}

	stats, err := repo.GetStats()
	if err == nil {
		fmt.Printf("\n📊 Database Statistics:\n")
		fmt.Printf("   Total key frames: %d\n", stats.TotalKeyFrames)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
		fmt.Printf("   Per run:\n")
		for run, count := range stats.PerRun {
			fmt.Printf("      - %s: %d key frames\n", run, count)
		}
	}
}
