package config

const (
	defaultWorkDir           = "~/.local/share/narrator/work"
	defaultStateDir          = "~/.local/share/narrator/state"
	defaultLogDir            = "~/.local/share/narrator/logs"
	defaultExtractionCommand = "narrate-extract"
	defaultExtractionMode    = "chapters"
	defaultSynthesisCommand  = "narrate-tts"
	defaultVoice             = "am_liam"
	defaultSpeed             = 1.0
	defaultDevice            = "cpu"
	defaultChunkSize         = 50
	defaultMaxRetries        = 3
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Extraction: Extraction{
			Command: defaultExtractionCommand,
			Mode:    defaultExtractionMode,
			UseTOC:  true,
		},
		Synthesis: Synthesis{
			Command: defaultSynthesisCommand,
			Voice:   defaultVoice,
			Speed:   defaultSpeed,
			Device:  defaultDevice,
		},
		Combine: Combine{
			ChunkSize: defaultChunkSize,
		},
		Workflow: Workflow{
			MaxRetries: defaultMaxRetries,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
