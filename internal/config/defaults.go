package config

const (
	defaultStateDir             = "~/.local/share/fieldsync"
	defaultLogDir               = "~/.local/share/fieldsync/logs"
	defaultAPIBind              = "127.0.0.1:7490"
	defaultStorageBackend       = StorageSQLite
	defaultAPIBaseURL           = "http://localhost:8001"
	defaultAPITimeoutSeconds    = 15
	defaultProbeURL             = "http://connectivitycheck.gstatic.com/generate_204"
	defaultProbeExpectedStatus  = 204
	defaultProbeIntervalSeconds = 30
	defaultProbeTimeoutSeconds  = 5
	defaultWatchNetlink         = true
	defaultSyncOnStart          = true
	defaultRetryIntervalSeconds = 0
	defaultNotifyRequestTimeout = 10
	defaultNotifyRejections     = true
	defaultNotifySyncSummary    = false
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultConfigPath           = "~/.config/fieldsync/config.toml"
	defaultProjectConfigName    = "fieldsync.toml"
	queueDatabaseName           = "queue.db"
	queueFileName               = "offline_queue.json"
	socketFileName              = "fieldsync.sock"
	lockFileName                = "fieldsync.lock"
	pidFileName                 = "fieldsync.pid"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Storage: Storage{
			Backend: defaultStorageBackend,
		},
		API: API{
			BaseURL:        defaultAPIBaseURL,
			TimeoutSeconds: defaultAPITimeoutSeconds,
		},
		Connectivity: Connectivity{
			ProbeURL:             defaultProbeURL,
			ProbeExpectedStatus:  defaultProbeExpectedStatus,
			ProbeIntervalSeconds: defaultProbeIntervalSeconds,
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			WatchNetlink:         defaultWatchNetlink,
		},
		Sync: Sync{
			SyncOnStart:          defaultSyncOnStart,
			RetryIntervalSeconds: defaultRetryIntervalSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Rejections:     defaultNotifyRejections,
			SyncSummary:    defaultNotifySyncSummary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
