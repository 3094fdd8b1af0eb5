// Package config loads the daligear YAML file.
//
// Values are resolved in order: built-in defaults, the file, then DALIGEAR_*
// environment variables. Validate reports every problem at once rather than
// the first. The gear id is generated when left empty.
//
// Keep the mqtt password and influxdb token in the environment
// (DALIGEAR_MQTT_PASSWORD, DALIGEAR_INFLUXDB_TOKEN) rather than the file.
//
//	cfg, err := config.Load(config.ResolvePath(flagPath))
package config
