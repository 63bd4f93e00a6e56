// Package config provides configuration parsing for the helmet demo server.
//
// The configuration is stored in helmet.json at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "name": "my-site",
//	  "server": {
//	    "port": 8080,
//	    "host": "localhost",
//	    "maxSessions": 256
//	  },
//	  "session": {
//	    "resumeWindow": "5m",
//	    "heartbeat": "30s"
//	  },
//	  "assets": {
//	    "manifest": "dist/manifest.json"
//	  },
//	  "demo": {
//	    "siteName": "Helmet",
//	    "cycleInterval": "4s"
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
//	fmt.Println("Address:", cfg.Address())
package config
