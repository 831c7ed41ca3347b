package isodep

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// ConfigEnv names the environment variable holding the directory of conf.toml.
const ConfigEnv = "ISODEP_CONFIG"

var (
	cfgOnce sync.Once
	config  Config
	cfgErr  error
)

// Config is the content of conf.toml.
type Config struct {
	Solver struct {
		Method   string  `mapstructure:"method"`
		RelTol   float64 `mapstructure:"rtol"`
		AbsTol   float64 `mapstructure:"atol"`
		RK4Steps int     `mapstructure:"rk4_steps"`
		MaxSteps int     `mapstructure:"max_steps"`
	} `mapstructure:"solver"`
	Output struct {
		Dir       string `mapstructure:"dir"`
		CSV       bool   `mapstructure:"csv"`
		JSON      bool   `mapstructure:"json"`
		Timestamp bool   `mapstructure:"timestamp"`
	} `mapstructure:"output"`
	Store struct {
		Path       string `mapstructure:"path"` // empty for an in-memory store
		SyncWrites bool   `mapstructure:"sync_writes"`
	} `mapstructure:"store"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solver.method", "cram")
	v.SetDefault("solver.rtol", 1e-10)
	v.SetDefault("solver.atol", 0.0)
	v.SetDefault("solver.rk4_steps", 1000)
	v.SetDefault("solver.max_steps", 100000)
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.csv", true)
	v.SetDefault("output.json", false)
	v.SetDefault("output.timestamp", false)
	v.SetDefault("store.path", "")
	v.SetDefault("store.sync_writes", false)
	v.SetDefault("log.level", "info")
}

// LoadConfig returns the configuration read from $ISODEP_CONFIG/conf.toml,
// or the defaults when the variable is unset. It is read once per process.
func LoadConfig() (Config, error) {
	cfgOnce.Do(func() {
		config, cfgErr = ReadConfig(os.Getenv(ConfigEnv))
	})
	return config, cfgErr
}

// ReadConfig reads dir/conf.toml. An empty dir only applies the defaults.
// Every key may be overridden by an ISODEP_ environment variable, such as
// ISODEP_SOLVER_METHOD.
func ReadConfig(dir string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("isodep")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if dir != "" {
		v.SetConfigName("conf")
		v.SetConfigType("toml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%s/conf.toml: %w", dir, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	if _, err := c.Method(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Method returns the configured solver method.
func (c Config) Method() (Method, error) {
	return ParseMethod(c.Solver.Method)
}

// SolverOptions returns the configured solver tuning.
func (c Config) SolverOptions() SolverOptions {
	return SolverOptions{RelTol: c.Solver.RelTol, AbsTol: c.Solver.AbsTol, RK4Steps: c.Solver.RK4Steps, MaxSteps: c.Solver.MaxSteps}
}

// ExportConfig returns the configured outputs for the named material.
func (c Config) ExportConfig(name string) ExportConfig {
	return ExportConfig{Dir: c.Output.Dir, Name: name, Timestamp: c.Output.Timestamp, AsCSV: c.Output.CSV, AsJSON: c.Output.JSON}
}
