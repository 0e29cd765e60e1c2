// Package config loads the rtmirror configuration file.
//
// The file is HCL (or JSON with the same field names). Every field is
// optional:
//
//	log_level        = "info"
//	netns            = "blue"
//	shutdown_timeout = "1s"
//
//	metrics {
//	  listen = "127.0.0.1:9464"
//	}
//
//	api {
//	  listen = env.RTMIRROR_API_LISTEN
//	}
//
//	history {
//	  enabled = true
//	  path    = "/var/lib/rtmirror/churn.db"
//	}
//
// Omitting the metrics or api block leaves that endpoint enabled on its
// default address. A present block is taken literally, so an empty
// `api {}` disables the API.
package config
