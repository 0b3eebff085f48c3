// Package config provides configuration parsing for reactor hosts.
//
// The configuration is stored in reactor.json next to the state file.
// This package handles loading, saving, validating and environment
// overrides. Library packages never read it; the CLI translates it into
// server.Config and store options.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "addr": ":8080",
//	    "readHeaderTimeout": "5s",
//	    "shutdownTimeout": "10s",
//	    "pingInterval": "30s",
//	    "sendBuffer": 16,
//	    "metricsPath": "/metrics"
//	  },
//	  "state": {
//	    "file": "state.hcl"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "snapshot": {
//	    "backend": "s3",
//	    "bucket": "reactor-snapshots",
//	    "prefix": "prod/",
//	    "region": "eu-west-1"
//	  },
//	  "routes": [
//	    {"name": "user", "path": "/users/:id"}
//	  ]
//	}
//
// # Environment Overrides
//
// ApplyEnv reads REACTOR_ADDR, REACTOR_STATE, REACTOR_LOG_LEVEL and
// REACTOR_SNAPSHOT_BUCKET. Overrides are applied after the file is loaded
// and before validation.
package config
