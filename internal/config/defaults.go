package config

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			TimeoutSeconds: 30,
		},
		History: HistoryConfig{
			Enabled:       true,
			DBPath:        "~/.mattersend/history.db",
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
