package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	once     sync.Once
	instance *Config
)

const envPath = "./configs/.env"

type Config struct {
}

// New loads ./configs/.env once. Without the file the process environment is used as is.
func New() *Config {
	once.Do(func() {
		err := godotenv.Load(envPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Fatal("loading envs error: ", err)
			}
			log.Println("no " + envPath + " found, using process environment")
		}
		instance = &Config{}
	})
	return instance
}

func (c *Config) GetString(key string) string {
	return os.Getenv(key)
}

func (c *Config) GetStringOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (c *Config) GetInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func (c *Config) GetBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func (c *Config) GetDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// GetList splits a comma separated value, dropping empty items.
func (c *Config) GetList(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	result := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	if len(result) == 0 {
		return def
	}
	return result
}
