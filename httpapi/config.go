package httpapi

// Config defines HTTP control API settings.
type Config struct {
	Addr             string
	ReplayEvents     int
	DisableAccessLog bool
}
