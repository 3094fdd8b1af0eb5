package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package variables.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "daligear",
		Short: "Emulated DALI control gear",
		Long: `daligear - an emulated DALI (IEC 62386-102) control gear.

The run command attaches one gear to a bus adapter and serves forward frames
until interrupted. Parameters persist in SQLite, state is published over MQTT
and level telemetry optionally goes to InfluxDB.

Transports:
  mqtt:   graylogic/dali/{gear_id}/forward and /backward
  serial: USB/serial DALI interface, one hex frame per line
  nats:   {prefix}.{gear_id}.forward and .backward

The config file is taken from --config, then $DALIGEAR_CONFIG, then
configs/config.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")

	root.AddCommand(
		newRunCmd(&configPath),
		newSimulateCmd(),
		newAuditCmd(&configPath),
		newVersionCmd(),
	)
	return root
}
