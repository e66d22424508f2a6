package version

const (
	AppName = "Soundbot"
	Version = "0.2.0"
)
