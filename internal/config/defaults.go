package config

import "runtime"

// Transfer modes accepted by sort.mode.
const (
	ModeCopy = "copy"
	ModeMove = "move"
)

// Layout modes accepted by nifti.mode.
const (
	NiftiSeparateDir = "save_in_separate_dir"
	NiftiInFolder    = "save_in_folder"
	NiftiExamDate    = "save_in_exam_date"
)

const (
	defaultConfigPath        = "~/.config/dicomsort/config.toml"
	defaultLogDir            = "~/.local/share/dicomsort/logs"
	defaultLogRetentionDays  = 30
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultDestinationSuffix = "_translated"
	defaultMaxWorkers        = 4
	defaultNiftiBinary       = "dcm2niix"
	defaultNiftiMode         = NiftiSeparateDir
)

// DefaultWorkers returns min(4, NumCPU).
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > defaultMaxWorkers {
		return defaultMaxWorkers
	}
	if n < 1 {
		return 1
	}
	return n
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir(),
		},
		Sort: Sort{
			Mode:              ModeCopy,
			Workers:           DefaultWorkers(),
			DestinationSuffix: defaultDestinationSuffix,
			Preflight:         true,
		},
		Nifti: Nifti{
			Mode:     defaultNiftiMode,
			Compress: true,
			Binary:   defaultNiftiBinary,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
