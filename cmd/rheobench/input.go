package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alexshd/rheobench"
	"github.com/alexshd/rheobench/internal/artifact"
	"github.com/alexshd/rheobench/internal/ingest"
	"github.com/alexshd/rheobench/internal/store"
)

// loadSets reads the measurement sets of a JSON file.
func loadSets(path string) ([]rheobench.CapillaryDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sets, err := ingest.ReadSets(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sets, nil
}

// loadAllSets concatenates the measurement sets of every file.
func loadAllSets(paths []string) ([]rheobench.CapillaryDataset, error) {
	var all []rheobench.CapillaryDataset
	for _, p := range paths {
		sets, err := loadSets(p)
		if err != nil {
			return nil, err
		}
		all = append(all, sets...)
	}
	return all, nil
}

// calibrationSource selects where a master curve comes from: a record file,
// the newest record in the session store, or nowhere.
type calibrationSource struct {
	path   string
	latest bool
}

func (c calibrationSource) load(ctx context.Context, a *app) (*rheobench.Calibration, error) {
	switch {
	case c.path != "" && c.latest:
		return nil, errors.New("--calibration and --latest-calibration are mutually exclusive")
	case c.path != "":
		f, err := os.Open(c.path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return artifact.ReadCalibration(f)
	case c.latest:
		s, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		rec, err := s.LatestCalibration(ctx)
		if err != nil {
			return nil, err
		}
		a.logger.Info("using stored calibration",
			"correction", rec.CorrectionType,
			"created_at", rec.CreatedAt.Format(time.RFC3339))
		return rec.Calibration()
	}
	return nil, nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, a.cfg.Store.Path, a.logger)
}

// processAll processes every dataset and concatenates the retained points.
func (a *app) processAll(datasets []rheobench.CapillaryDataset, cal *rheobench.Calibration) ([]rheobench.ProcessedPoint, error) {
	var points []rheobench.ProcessedPoint
	for _, ds := range datasets {
		res, err := rheobench.ProcessDataset(ds, rheobench.ProcessOptions{Calibration: cal, Logger: a.logger})
		if err != nil {
			return nil, err
		}
		if res.Dropped > 0 {
			a.logger.Warn("calibration dropped points", "dataset", ds.ID, "count", res.Dropped)
		}
		points = append(points, res.Points...)
	}
	return points, nil
}

// writeFile creates path, and its parent directory, and hands it to write.
func writeFile(path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
