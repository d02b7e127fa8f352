package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultBackend   = "file"
	defaultStorePath = "db/jobstash.data"
	defaultPageSize  = 64 << 10
	defaultListen    = "127.0.0.1:3200"
)

// Config of the jobstash binaries. Values are resolved in this order, later
// wins: built-in defaults, the YAML file named by CONFIG, environment
// variables, command line flags.
type Config struct {
	Backend   string `yaml:"backend"`
	StorePath string `yaml:"store_path"`
	PageSize  uint32 `yaml:"page_size"`
	Listen    string `yaml:"listen"`
	Token     string `yaml:"token"`
	Debug     bool   `yaml:"debug"`
}

func defaults() *Config {
	return &Config{
		Backend:   defaultBackend,
		StorePath: defaultStorePath,
		PageSize:  defaultPageSize,
		Listen:    defaultListen,
	}
}

// NewConfig loads the configuration of the running process.
func NewConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load resolves the configuration from args and the environment.
func Load(args []string) (*Config, error) {
	const msg = "config load:"
	c := defaults()

	path := os.Getenv("CONFIG")
	// the file is applied before the flags, so CONFIG is picked out first
	for i, a := range args {
		if !strings.HasPrefix(a, "-") {
			continue
		}
		name := strings.TrimLeft(a, "-")
		if name == "CONFIG" && i+1 < len(args) {
			path = args[i+1]
		}
		if v, ok := strings.CutPrefix(name, "CONFIG="); ok {
			path = v
		}
	}
	if path != "" {
		if err := c.readFile(path); err != nil {
			return nil, fmt.Errorf("%s %w", msg, err)
		}
	}
	if err := c.readEnv(); err != nil {
		return nil, fmt.Errorf("%s %w", msg, err)
	}

	fs := flag.NewFlagSet("jobstash", flag.ContinueOnError)
	fs.String("CONFIG", path, "YAML config file")
	fs.StringVar(&c.Backend, "BACKEND", c.Backend, "backing memory: memory, file or badger")
	fs.StringVar(&c.StorePath, "STORE_PATH", c.StorePath, "store file or badger directory")
	pageSize := fs.Uint("PAGE_SIZE", uint(c.PageSize), "page size of a new store")
	fs.StringVar(&c.Listen, "LISTEN", c.Listen, "gRPC address")
	fs.StringVar(&c.Token, "TOKEN", c.Token, "bearer token, empty disables authentication")
	fs.BoolVar(&c.Debug, "DEBUG", c.Debug, "development logging")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s %w", msg, err)
	}
	c.PageSize = uint32(*pageSize)

	return c, nil
}

func (c *Config) readFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c *Config) readEnv() error {
	if v, ok := os.LookupEnv("BACKEND"); ok {
		c.Backend = v
	}
	if v, ok := os.LookupEnv("STORE_PATH"); ok {
		c.StorePath = v
	}
	if v, ok := os.LookupEnv("PAGE_SIZE"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("PAGE_SIZE: %w", err)
		}
		c.PageSize = uint32(n)
	}
	if v, ok := os.LookupEnv("LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := os.LookupEnv("TOKEN"); ok {
		c.Token = v
	}
	if v, ok := os.LookupEnv("DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG: %w", err)
		}
		c.Debug = b
	}
	return nil
}
