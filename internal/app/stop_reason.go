package app

// StopReason says why a lane generation ended.
type StopReason string

const (
	StopUnknown      StopReason = "unknown"
	StopSignal       StopReason = "signal"
	StopFinished     StopReason = "finished"
	StopConfigReload StopReason = "config_reload"
)

func (r StopReason) String() string { return string(r) }
