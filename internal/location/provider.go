package location

import (
	"fmt"

	"fieldcam/internal/config"
)

// NewProvider builds the provider selected by the location config section.
func NewProvider(cfg config.Location) (Provider, error) {
	switch cfg.Provider {
	case "nmea":
		return &NMEAProvider{Device: cfg.Device}, nil
	case "gpsd":
		return &GPSDProvider{Addr: cfg.GPSDAddr}, nil
	case "static", "":
		return &StaticProvider{
			Latitude:  cfg.StaticLatitude,
			Longitude: cfg.StaticLongitude,
			AccuracyM: cfg.StaticAccuracyM,
		}, nil
	default:
		return nil, fmt.Errorf("location provider %q not supported", cfg.Provider)
	}
}
