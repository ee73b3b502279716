// Package cleanup removes aged scratch files left behind by audio downloads
// and report rendering.
package cleanup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"tubeinsights/internal/logger"
)

// Scheduler periodically prunes old files from the scratch directory.
type Scheduler struct {
	tempDir         string
	intervalMinutes int
	maxAgeHours     int
	stopChan        chan struct{}
	log             *logrus.Entry
}

// NewScheduler creates a new cleanup scheduler.
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, log *logger.Logger) *Scheduler {
	return &Scheduler{
		tempDir:         tempDir,
		intervalMinutes: intervalMinutes,
		maxAgeHours:     maxAgeHours,
		stopChan:        make(chan struct{}),
		log:             log.Module("cleanup"),
	}
}

// Start runs one immediate sweep and then sweeps on the configured interval.
func (s *Scheduler) Start() {
	s.sweep()

	ticker := time.NewTicker(time.Duration(s.intervalMinutes) * time.Minute)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.WithFields(logrus.Fields{
		"interval_minutes": s.intervalMinutes,
		"max_age_hours":    s.maxAgeHours,
	}).Info("cleanup scheduler started")
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// sweep removes files older than the configured age.
func (s *Scheduler) sweep() {
	now := time.Now()
	maxAge := time.Duration(s.maxAgeHours) * time.Hour

	var deletedCount int
	var deletedSize int64

	filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if now.Sub(info.ModTime()) <= maxAge {
			return nil
		}
		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.log.WithField("path", path).WithError(err).Warn("failed to delete old file")
			return nil
		}
		deletedCount++
		deletedSize += size
		return nil
	})

	if deletedCount > 0 {
		s.log.WithFields(logrus.Fields{
			"files":    deletedCount,
			"freed_kb": deletedSize / 1024,
		}).Info("cleanup sweep complete")
	}
}

// EnsureTempDirExists creates the scratch directory if it doesn't exist.
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
