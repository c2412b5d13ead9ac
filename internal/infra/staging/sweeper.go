package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yanqian/docdigest/pkg/util"
)

// Sweeper removes temp files left behind when the process died between staging and release.
type Sweeper struct {
	dir      string
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
	logger   *slog.Logger
}

// NewSweeper validates the cron schedule up front.
func NewSweeper(dir string, ttl time.Duration, schedule string, logger *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		dir:      dir,
		ttl:      ttl,
		schedule: schedule,
		cron:     cron.New(),
		now:      util.NowUTC,
		logger:   logger.With("component", "staging.sweeper"),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs one sweep immediately and then follows the schedule.
func (s *Sweeper) Start() {
	s.run()
	s.cron.Start()
	s.logger.Info("temp file sweeper started", "dir", s.dir, "schedule", s.schedule, "ttl", s.ttl.String())
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	removed, err := s.Sweep()
	if err != nil {
		s.logger.Error("temp file sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Warn("removed orphaned temp files", "count", removed)
	}
}

// Sweep deletes stager-owned files older than the ttl and reports how many were removed.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	now := s.now()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !util.OlderThan(info.ModTime(), now, s.ttl) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("remove orphaned temp file failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
