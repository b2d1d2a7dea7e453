// Package config provides configuration parsing for derive.
//
// The configuration is stored in derive.json, next to the scenarios it
// applies to. This package handles loading, saving, and validating it.
//
// # Configuration File Structure
//
//	{
//	  "diagnostics": true,
//	  "logLevel": "debug",
//	  "maxFlushIterations": 100,
//	  "server": {
//	    "addr": "localhost:7070",
//	    "watchBuffer": 64
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "derive"
//	  },
//	  "tracing": {
//	    "enabled": false
//	  },
//	  "snapshot": {
//	    "url": "file://snapshots"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Addr:", cfg.Server.Addr)
package config
