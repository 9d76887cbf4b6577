package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/fulltextable/data/db/fulltext.db"
	}
	if cfg.Storage.Table == "" {
		cfg.Storage.Table = "fulltext_rows"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/fulltextable/data/indices/bleve"
	}
	if cfg.Storage.ContentDatabasePath == "" {
		cfg.Storage.ContentDatabasePath = "/usr/local/var/fulltextable/data/db/content.db"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.DefaultPageSize == 0 {
		cfg.Search.DefaultPageSize = 30
	}
	if cfg.Search.HydrateConcurrency == 0 {
		cfg.Search.HydrateConcurrency = 4
	}
}
