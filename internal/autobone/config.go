package autobone

// Config holds the recording and optimization settings.
type Config struct {
	SampleCount         int   `json:"sampleCount" mapstructure:"sampleCount"`
	SampleRateMs        int64 `json:"sampleRateMs" mapstructure:"sampleRateMs"`
	CalcInitError       bool  `json:"calcInitError" mapstructure:"calcInitError"`
	RandomizeFrameOrder bool  `json:"randomizeFrameOrder" mapstructure:"randomizeFrameOrder"`
	SaveRecordings      bool  `json:"saveRecordings" mapstructure:"saveRecordings"`

	NumEpochs            int     `json:"numEpochs" mapstructure:"numEpochs"`
	PrintEveryNumEpochs  int     `json:"printEveryNumEpochs" mapstructure:"printEveryNumEpochs"`
	InitialAdjustRate    float64 `json:"initialAdjustRate" mapstructure:"initialAdjustRate"`
	AdjustRateMultiplier float64 `json:"adjustRateMultiplier" mapstructure:"adjustRateMultiplier"`
	SlideErrorFactor     float64 `json:"slideErrorFactor" mapstructure:"slideErrorFactor"`
	HeightErrorFactor    float64 `json:"heightErrorFactor" mapstructure:"heightErrorFactor"`
	MinDataDistance      int     `json:"minDataDistance" mapstructure:"minDataDistance"`
	MaxDataDistance      int     `json:"maxDataDistance" mapstructure:"maxDataDistance"`
	CursorIncrement      int     `json:"cursorIncrement" mapstructure:"cursorIncrement"`
	PositionScale        float64 `json:"positionScale" mapstructure:"positionScale"`
	RandomSeed           int64   `json:"randomSeed" mapstructure:"randomSeed"`

	// TargetHmdHeight overrides the height estimated from the recording when > 0.
	TargetHmdHeight float64 `json:"targetHmdHeight" mapstructure:"targetHmdHeight"`
	// UseSkeletonHeight targets the configured skeleton height instead of the recording.
	UseSkeletonHeight bool `json:"useSkeletonHeight" mapstructure:"useSkeletonHeight"`

	ComputeContributions bool   `json:"computeContributions" mapstructure:"computeContributions"`
	ExportDir            string `json:"exportDir" mapstructure:"exportDir"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SampleCount:          1500,
		SampleRateMs:         20,
		CalcInitError:        false,
		RandomizeFrameOrder:  true,
		SaveRecordings:       false,
		NumEpochs:            50,
		PrintEveryNumEpochs:  25,
		InitialAdjustRate:    1.0,
		AdjustRateMultiplier: 0.995,
		SlideErrorFactor:     1.0,
		HeightErrorFactor:    1.0,
		MinDataDistance:      1,
		MaxDataDistance:      1,
		CursorIncrement:      2,
		PositionScale:        1.0,
		RandomSeed:           4,
	}
}
