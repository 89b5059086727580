package config

// CLIConfig is the configuration for meshkv-cli.
type CLIConfig struct {
	Server  string `yaml:"server"`
	HTTP    string `yaml:"http"`
	Output  string `yaml:"output"`
	History string `yaml:"history"`

	Profiles map[string]Profile `yaml:"profiles"`
}

// Profile is a named pair of server addresses.
type Profile struct {
	Server string `yaml:"server"`
	HTTP   string `yaml:"http"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:   "127.0.0.1:6379",
		HTTP:     "127.0.0.1:8080",
		Output:   "plain",
		Profiles: make(map[string]Profile),
	}
}
