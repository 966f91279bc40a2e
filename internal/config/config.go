package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store kinds accepted by store.kind.
const (
	StoreDocument = "document"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Store struct {
		Kind     string
		Location string
	}
	Storage struct {
		Region   string
		Endpoint string
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		JWTSecret         string
		TokenTTLMinutes   int
		BootstrapPassword string
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables, an optional config
// file and flags. Flags win over the environment, which wins over the file.
// A positional argument overrides the store location.
func Load(flags *pflag.FlagSet) (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("store.kind", StoreDocument)
	v.SetDefault("store.location", "data/users.json")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("auth.bootstrappassword", "")
	v.SetDefault("log.level", "info")

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
		if flags.NArg() > 0 {
			v.Set("store.location", flags.Arg(0))
		}
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		_ = v.ReadInConfig() // optional file
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Flags returns the command line flags understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a config file")
	fs.String("store-kind", "", "user store kind: document, sqlite or postgres")
	fs.String("store-location", "", "store file path, s3://bucket/key or postgres DSN")
	fs.String("addr", "", "http listen address")
	fs.String("log-level", "", "log level")
	return fs
}

var flagKeys = map[string]string{
	"config":         "config",
	"store-kind":     "store.kind",
	"store-location": "store.location",
	"addr":           "server.addr",
	"log-level":      "log.level",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
	switch c.Store.Kind {
	case StoreDocument, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	if strings.TrimSpace(c.Store.Location) == "" {
		return fmt.Errorf("store location is required")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth token ttl must be positive, got %d", c.Auth.TokenTTLMinutes)
	}
	return nil
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
