package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"compgrid/internal/config"
	"compgrid/internal/model"
	"compgrid/internal/notifier"
	"compgrid/internal/report"
)

// JobRunner runs one grid delivery.
type JobRunner interface {
	Run(ctx context.Context, req report.Request) (*report.Result, error)
}

// Scheduler runs every configured job on its cron schedule. The anchor of a
// run is yesterday in the configured time zone.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   JobRunner
	Jobs     []config.Job
	Location *time.Location
	// Alerter, when set, receives a message for every failed scheduled run.
	Alerter notifier.Deliverer
	Logger  zerolog.Logger
	Ctx     context.Context

	mu      sync.Mutex
	entries map[string]cron.EntryID
	now     func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner JobRunner, jobs []config.Job, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Runner:   runner,
		Jobs:     jobs,
		Location: loc,
		Logger:   logger.With().Str("component", "scheduler").Logger(),
		Ctx:      ctx,
		entries:  make(map[string]cron.EntryID),
		now:      time.Now,
	}
}

// RegisterAll registers one cron entry per job.
func (s *Scheduler) RegisterAll() error {
	for _, job := range s.Jobs {
		job := job
		id, err := s.Cron.AddFunc(job.Cron, func() { s.scheduledRun(job) })
		if err != nil {
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
		s.mu.Lock()
		s.entries[job.Name] = id
		s.mu.Unlock()
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info().Int("jobs", len(s.Jobs)).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info().Msg("scheduler stopped")
}

// Anchor is the date grids are built for right now.
func (s *Scheduler) Anchor() model.Date {
	return model.Yesterday(s.now(), s.Location)
}

// RunJobNow runs a configured job immediately.
func (s *Scheduler) RunJobNow(ctx context.Context, name string, force bool) (*report.Result, error) {
	job, ok := s.job(name)
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return s.Runner.Run(ctx, report.Request{
		Definition: job.Definition,
		Target:     job.Target,
		Anchor:     s.Anchor(),
		Force:      force,
	})
}

func (s *Scheduler) scheduledRun(job config.Job) {
	log := s.Logger.With().Str("job", job.Name).Logger()
	log.Info().Msg("running scheduled job")

	res, err := s.RunJobNow(s.Ctx, job.Name, false)
	if err != nil {
		log.Error().Err(err).Msg("scheduled job failed")
		s.alert(job.Name, err)
		return
	}
	if res.Skipped {
		log.Info().Msg("scheduled job skipped")
	}
}

func (s *Scheduler) alert(name string, err error) {
	if s.Alerter == nil {
		return
	}
	if sendErr := s.Alerter.Deliver(s.Ctx, "", notifier.FormatFailure(name, err)); sendErr != nil {
		s.Logger.Error().Err(sendErr).Msg("send failure alert")
	}
}

func (s *Scheduler) job(name string) (config.Job, bool) {
	for _, j := range s.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return config.Job{}, false
}

// JobInfos lists the jobs with their next scheduled run.
func (s *Scheduler) JobInfos() []notifier.JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]notifier.JobInfo, 0, len(s.Jobs))
	for _, j := range s.Jobs {
		info := notifier.JobInfo{Name: j.Name, Target: j.Target, Cron: j.Cron}
		if id, ok := s.entries[j.Name]; ok {
			if next := s.Cron.Entry(id).Next; !next.IsZero() {
				info.Next = next.Format(time.RFC3339)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch fields[0] {
	case "/jobs":
		return notifier.FormatJobList(s.JobInfos())
	case "/grid":
		if len(fields) != 2 {
			return "Usage: /grid &lt;name&gt;"
		}
		name := fields[1]
		res, err := s.RunJobNow(ctx, name, true)
		if err != nil {
			return notifier.FormatFailure(name, err)
		}
		return fmt.Sprintf("✅ <b>%s</b> delivered for %s (%d rows)", name, res.Grid.Anchor, len(res.Grid.Rows))
	default:
		return helpText
	}
}

const helpText = "Available commands:\n• /jobs\n• /grid &lt;name&gt;"
