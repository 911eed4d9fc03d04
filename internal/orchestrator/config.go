package orchestrator

import (
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/sysmem"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultIdleTimeout        = 300 * time.Second
	defaultReaperPeriod       = 30 * time.Second
	defaultGracePeriod        = 5 * time.Second
	defaultStartupTimeout     = 120 * time.Second
	defaultHealthInterval     = time.Second
	defaultHealthPath         = "/health"
	defaultMaxConcurrent      = 1
	defaultMaxQueueDepth      = 32
	defaultMaxWait            = 30 * time.Second
	defaultUnhealthyThreshold = 3
)

// Config holds everything New needs. Zero values select package defaults.
type Config struct {
	Specs []WorkerSpec
	// BudgetMB is the memory the host may give to workers; MarginMB of it is
	// never handed out. A non-positive budget disables accounting.
	BudgetMB int
	MarginMB int

	IdleTimeout  time.Duration
	ReaperPeriod time.Duration
	// GracePeriod is how long a worker gets between SIGTERM and SIGKILL.
	GracePeriod time.Duration

	// Per-worker concurrency gate. MaxConcurrent 1 serializes requests.
	MaxConcurrent int
	MaxQueueDepth int
	MaxWait       time.Duration

	// MaxRequests recycles an idle worker after it served this many
	// requests; 0 disables.
	MaxRequests int
	// UnhealthyThreshold is the number of consecutive failed liveness checks
	// after which an idle worker is force-evicted.
	UnhealthyThreshold int

	// StateDir holds pid files for boot reconciliation; empty disables them.
	StateDir string

	Launcher  Launcher
	Prober    *Prober
	Publisher EventPublisher
	Logger    *zerolog.Logger
	// Now overrides the clock used for activity tracking.
	Now func() time.Time
	// HostMemory reads the host's memory for Status; defaults to procfs.
	HostMemory func() (sysmem.Snapshot, error)
}

func (c *Config) applyDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ReaperPeriod <= 0 {
		c.ReaperPeriod = defaultReaperPeriod
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	if c.UnhealthyThreshold <= 0 {
		c.UnhealthyThreshold = defaultUnhealthyThreshold
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.HostMemory == nil {
		c.HostMemory = sysmem.Host
	}
	for i := range c.Specs {
		s := &c.Specs[i]
		if s.StartupTimeout <= 0 {
			s.StartupTimeout = defaultStartupTimeout
		}
		if s.HealthInterval <= 0 {
			s.HealthInterval = defaultHealthInterval
		}
		if s.HealthPath == "" {
			s.HealthPath = defaultHealthPath
		}
	}
}
