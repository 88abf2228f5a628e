/*
Package config loads remindsync configuration.

Sources, later ones winning:

 1. Built-in defaults (DefaultConfig)
 2. YAML file, ~/.remindsync/config.yaml unless --config is given
 3. Environment variables with the REMINDSYNC_ prefix

A .env file in the working directory is read into the environment before
anything else, so credentials can live next to the binary during development.

Example file:

	store:
	  dir: ~/.remindsync
	  backend: auto
	remote:
	  project_id: my-project
	  credentials_file: ~/keys/service-account.json
	  user_id: uid-123
	  device_id: laptop
	ai:
	  enabled: true
	  timeout: 8s
	fanout:
	  listen_addr: ":8080"
	  exclude_origin: false

Nested keys map to environment variables with a double underscore:

	REMINDSYNC_STORE__BACKEND=local
	REMINDSYNC_FANOUT__EXCLUDE_ORIGIN=true

DEEPSEEK_API_KEY, GOOGLE_APPLICATION_CREDENTIALS and GOOGLE_CLOUD_PROJECT are
honoured when the matching key is unset.
*/
package config
