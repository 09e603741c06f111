package cfg

type Cfg struct {
	// Storage
	DBPath string

	// Application configuration
	FeedsDir          string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// One-shot modes
	Once      bool
	File      string
	FileTitle string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// Server reports whether the long-running service should start.
func (c *Cfg) Server() bool {
	return !c.Once && c.File == ""
}
