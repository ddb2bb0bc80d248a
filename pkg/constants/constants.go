package constants

const (
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "LABTRACE"
	ServiceName  = "labtrace_backend"
)
