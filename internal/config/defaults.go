package config

const (
	defaultStatFile        = "~/.local/share/framealign/stat.db"
	defaultLogDir          = "~/.local/share/framealign/logs"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultBackwardFrames  = 3
	defaultForwardFrames   = 3
	defaultMaxDiff         = 5
	defaultMaxDiffIncrease = 1
	defaultMaxDeviation    = 1
	defaultMode            = ModeDefault
	defaultKernel          = "bilinear"

	defaultMinSampleArea      = 1500
	defaultRequiredSampleArea = 3000
	defaultMaxSampleDiff      = 5
	defaultScaleBase          = 1.5
	defaultBranches           = 1
	defaultBranchMaxDiff      = 0.2
	defaultAcceptableDiff     = 5
	defaultCorrection         = 1
)

// Engine modes.
const (
	ModeDefault   = "default"
	ModeUpdate    = "update"
	ModeErase     = "erase"
	ModeReadOnly  = "readonly"
	ModeRecompute = "recompute"
)

// StatFileEnv overrides paths.stat_file when the file leaves it empty.
const StatFileEnv = "FRAMEALIGN_STAT_FILE"

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Engine: Engine{
			BackwardFrames:  defaultBackwardFrames,
			ForwardFrames:   defaultForwardFrames,
			MaxDiff:         defaultMaxDiff,
			MaxDiffIncrease: defaultMaxDiffIncrease,
			MaxDeviation:    defaultMaxDeviation,
			Stabilize:       true,
			Mode:            defaultMode,
		},
		Resample: Resample{
			Downsize: defaultKernel,
			Upsize:   defaultKernel,
			Rotate:   defaultKernel,
		},
	}
}

// DefaultSearch returns the stock search pass.
func DefaultSearch() Search {
	return Search{
		MinSampleArea:      defaultMinSampleArea,
		RequiredSampleArea: defaultRequiredSampleArea,
		MaxSampleDiff:      defaultMaxSampleDiff,
		ScaleBase:          defaultScaleBase,
		Branches:           defaultBranches,
		BranchMaxDiff:      defaultBranchMaxDiff,
		AcceptableDiff:     defaultAcceptableDiff,
		Correction:         defaultCorrection,
	}
}
