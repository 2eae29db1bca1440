package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Collection.Backend == "" {
		cfg.Collection.Backend = "sqlite"
	}
	if cfg.Collection.Name == "" {
		cfg.Collection.Name = "database_registry"
	}
	if cfg.Collection.Path == "" {
		cfg.Collection.Path = "/usr/local/var/meibo/data/registry.db"
	}
	if cfg.Collection.QdrantHost == "" {
		cfg.Collection.QdrantHost = "localhost"
	}
	if cfg.Collection.QdrantPort == 0 {
		cfg.Collection.QdrantPort = 6334
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/meibo/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
}
