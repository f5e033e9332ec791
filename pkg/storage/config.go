package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Provider names accepted by Config.Provider.
const (
	ProviderLocal = "local"
	ProviderAzure = "azure"
	ProviderS3    = "s3"
)

// Config selects a storage provider and holds its connection parameters.
type Config struct {
	Provider    string      `toml:"provider"`
	MaxListSize int32       `toml:"max_list_size"`
	Local       LocalConfig `toml:"local"`
	Azure       AzureConfig `toml:"azure"`
	S3          S3Config    `toml:"s3"`
}

// LocalConfig stores blobs as files beneath Root.
type LocalConfig struct {
	Root string `toml:"root"`
}

// AzureConfig holds Azure Blob Storage parameters. When ConnectionString is empty,
// AccountURL is used with the default Azure credential chain.
type AzureConfig struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
}

// S3Config holds S3 and S3-compatible storage parameters. Explicit keys take
// precedence over the AWS default credential chain.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	ForcePathStyle  bool   `toml:"force_path_style"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider         string
	MaxListSize      string
	LocalRoot        string
	ContainerName    string
	ConnectionString string
	AccountURL       string
	Bucket           string
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	ForcePathStyle   string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.MaxListSize != 0 {
		c.MaxListSize = overlay.MaxListSize
	}
	if overlay.Local.Root != "" {
		c.Local.Root = overlay.Local.Root
	}
	if overlay.Azure.ContainerName != "" {
		c.Azure.ContainerName = overlay.Azure.ContainerName
	}
	if overlay.Azure.ConnectionString != "" {
		c.Azure.ConnectionString = overlay.Azure.ConnectionString
	}
	if overlay.Azure.AccountURL != "" {
		c.Azure.AccountURL = overlay.Azure.AccountURL
	}
	if overlay.S3.Bucket != "" {
		c.S3.Bucket = overlay.S3.Bucket
	}
	if overlay.S3.Region != "" {
		c.S3.Region = overlay.S3.Region
	}
	if overlay.S3.Endpoint != "" {
		c.S3.Endpoint = overlay.S3.Endpoint
	}
	if overlay.S3.AccessKeyID != "" {
		c.S3.AccessKeyID = overlay.S3.AccessKeyID
	}
	if overlay.S3.SecretAccessKey != "" {
		c.S3.SecretAccessKey = overlay.S3.SecretAccessKey
	}
	if overlay.S3.ForcePathStyle {
		c.S3.ForcePathStyle = true
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.MaxListSize == 0 {
		c.MaxListSize = 50
	}
	if c.MaxListSize > MaxListCap {
		c.MaxListSize = MaxListCap
	}
	if c.Local.Root == "" {
		c.Local.Root = "./extraction-output"
	}
	if c.Azure.ContainerName == "" {
		c.Azure.ContainerName = "extractions"
	}
}

func (c *Config) loadEnv(env *Env) {
	setString := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setString(env.Provider, &c.Provider)
	setString(env.LocalRoot, &c.Local.Root)
	setString(env.ContainerName, &c.Azure.ContainerName)
	setString(env.ConnectionString, &c.Azure.ConnectionString)
	setString(env.AccountURL, &c.Azure.AccountURL)
	setString(env.Bucket, &c.S3.Bucket)
	setString(env.Region, &c.S3.Region)
	setString(env.Endpoint, &c.S3.Endpoint)
	setString(env.AccessKeyID, &c.S3.AccessKeyID)
	setString(env.SecretAccessKey, &c.S3.SecretAccessKey)

	if env.ForcePathStyle != "" {
		if v := os.Getenv(env.ForcePathStyle); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.S3.ForcePathStyle = b
			}
		}
	}
	if env.MaxListSize != "" {
		if v := os.Getenv(env.MaxListSize); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.MaxListSize = min(int32(n), MaxListCap)
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.Local.Root == "" {
			return fmt.Errorf("local.root required")
		}
	case ProviderAzure:
		if c.Azure.ContainerName == "" {
			return fmt.Errorf("azure.container_name required")
		}
		if c.Azure.ConnectionString == "" && c.Azure.AccountURL == "" {
			return fmt.Errorf("azure.connection_string or azure.account_url required")
		}
	case ProviderS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket required")
		}
		if (c.S3.AccessKeyID != "") != (c.S3.SecretAccessKey != "") {
			return fmt.Errorf("s3.access_key_id and s3.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}
	return nil
}
