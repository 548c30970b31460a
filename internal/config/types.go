package config

// Config is the root configuration schema, shared by the client commands
// and the server.
type Config struct {
	Global GlobalConfig `mapstructure:"global"`
	Client ClientConfig `mapstructure:"client"`
	Server ServerConfig `mapstructure:"server"`
}

type GlobalConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or console
	LockFile  string `mapstructure:"lock_file"`
}

// ClientConfig holds the sync client's identity and per-emulator save paths.
// Nickname and APIKey are written back to the config file after registration.
type ClientConfig struct {
	ServerURL string            `mapstructure:"server_url"`
	Nickname  string            `mapstructure:"nickname"`
	APIKey    string            `mapstructure:"api_key"`
	SavePaths map[string]string `mapstructure:"save_paths"`
}

type ServerConfig struct {
	Listen    string        `mapstructure:"listen"`
	UsersFile string        `mapstructure:"users_file"`
	Storage   StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	Backend string     `mapstructure:"backend"` // local, s3
	Local   LocalStore `mapstructure:"local"`
	S3      S3Store    `mapstructure:"s3"`
}

type LocalStore struct {
	Path string `mapstructure:"path"`
}

type S3Store struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	SessionToken   string `mapstructure:"session_token"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}
