package config

// Relay definition relay_service YAML structure
type Relay struct {
	Port    string `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`

	Store      StoreConfig    `mapstructure:"store"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Mongo      DatabaseConfig `mapstructure:"mongo"`
	Redis      RedisConfig    `mapstructure:"redis"`
}

// StoreConfig definition message store backend selection
type StoreConfig struct {
	// Backend "postgres" or "mongo"
	Backend string `mapstructure:"backend"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	RedisDB  int    `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
