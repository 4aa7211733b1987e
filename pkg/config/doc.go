// Package config loads the plugman.yaml configuration file.
//
// A minimal file names the plugins directory; everything else has a default:
//
//	plugins_dir: ./plugins
//	ledger:
//	  path: ./.plugman/ledger.db
//	logging:
//	  level: info
//	  format: console
//	policy:
//	  enabled: true
//	  paths: [./policies]
//	  disabled: [android-permissions]
//	platforms:
//	  android:
//	    www_dir: assets/www
//	variables:
//	  API_KEY: secret
//
// Relative paths are resolved against the directory holding the file. Command
// line flags take precedence over file values; that merge happens in the
// commands package.
package config
