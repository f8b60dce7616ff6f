package ytgrab

import (
	"flag"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFileOption = "config.file"
	envFileOption    = "config.env-file"
)

// envFlags maps environment variables onto the flags they override.
var envFlags = map[string]string{
	"YTGRAB_LISTEN_ADDRESS":  "server.listen-address",
	"YTGRAB_ALLOWED_ORIGINS": "server.allowed-origins",
	"YTGRAB_DOWNLOAD_DIR":    "downloader.dir",
	"YTGRAB_MAX_CONCURRENT":  "downloader.max-concurrent",
	"YTGRAB_TEST_MODE":       "downloader.fetcher.test-mode",
	"YTGRAB_LOG_LEVEL":       "log.level",
}

// LoadConfig fills cfg from, in increasing priority: flag defaults, the YAML
// config file, the environment (including the env file), and args.
func LoadConfig(f *flag.FlagSet, args []string, cfg *Config) error {
	configFile, envFile := parseConfigFileParameters(args)

	// Registered so that Parse accepts them.
	f.String(configFileOption, "", "YAML file to load.")
	f.String(envFileOption, ".env", "Env file to load before applying YTGRAB_* overrides.")
	cfg.RegisterFlags(f)

	if configFile != "" {
		if err := loadConfigFile(configFile, cfg); err != nil {
			return errors.Wrapf(err, "load config file %s", configFile)
		}
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "load env file %s", envFile)
	}
	for env, name := range envFlags {
		if v, ok := os.LookupEnv(env); ok {
			if err := f.Set(name, v); err != nil {
				return errors.Wrapf(err, "apply %s", env)
			}
		}
	}

	return f.Parse(args)
}

func loadConfigFile(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.UnmarshalStrict(buf, cfg)
}

func parseConfigFileParameters(args []string) (configFile, envFile string) {
	f := flag.NewFlagSet("", flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.StringVar(&configFile, configFileOption, "", "")
	f.StringVar(&envFile, envFileOption, ".env", "")

	// Unknown flags stop Parse, so keep going one argument at a time.
	for len(args) > 0 {
		_ = f.Parse(args)
		args = args[1:]
	}

	return
}
