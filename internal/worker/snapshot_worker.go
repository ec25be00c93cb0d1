package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"revintake/internal/service"
)

// SnapshotWorker периодически выгружает всю таблицу заявок
// в CSV-файл с меткой времени.
type SnapshotWorker struct {
	service   service.IntakeService
	interval  time.Duration
	outputDir string
	stopChan  chan struct{}
	running   bool
}

func NewSnapshotWorker(svc service.IntakeService, interval time.Duration, outputDir string) *SnapshotWorker {
	if outputDir == "" {
		outputDir = "./data/snapshots"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Printf("Failed to create snapshot directory: %v", err)
	}

	return &SnapshotWorker{
		service:   svc,
		interval:  interval,
		outputDir: outputDir,
		stopChan:  make(chan struct{}),
	}
}

func (w *SnapshotWorker) Start() {
	if w.running {
		return
	}

	w.running = true
	log.Printf("Snapshot Worker started with interval %v", w.interval)

	w.snapshot()
	go w.run()
}

func (w *SnapshotWorker) Stop() {
	if !w.running {
		return
	}

	close(w.stopChan)
	w.running = false
	log.Println("Snapshot Worker stopped")
}

func (w *SnapshotWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.snapshot()
		case <-w.stopChan:
			return
		}
	}
}

func (w *SnapshotWorker) snapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	csvData, err := w.service.ExportCSV(ctx)
	if errors.Is(err, service.ErrNoData) {
		return
	}
	if err != nil {
		log.Printf("Snapshot Worker error: %v", err)
		return
	}

	filename := fmt.Sprintf("intake_%s.csv", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(w.outputDir, filename)

	if err := os.WriteFile(path, []byte(csvData), 0644); err != nil {
		log.Printf("Snapshot Worker: failed to write %s: %v", path, err)
		return
	}

	log.Printf("Snapshot written: %s", filename)
}
