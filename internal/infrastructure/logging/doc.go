// Package logging builds the daemon's log/slog logger.
//
// Entries are JSON by default and text when logging.format is "text". Each
// one carries service=daligear and the build version. Components log through
// child loggers from ForGear, so every line names the component and gear:
//
//	log := logging.New(cfg.Logging, version)
//	store.SetLogger(log.ForGear("paramstore", cfg.Gear.ID))
//
// The mqtt password and influxdb token must never be passed as attributes.
package logging
