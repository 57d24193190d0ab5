package cosmod

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

var (
	cfgLoaded = false
	config    = _cosmodConfig{}
)

// _cosmodConfig is a "hidden" struct, just use `cosmodConfig`.
type _cosmodConfig struct {
	VSOP87       bool
	VSOP87Dir    string
	outputDir    string
	ltIterations int
	ephemStart   float64 // JDE
	ephemSpan    float64 // days
}

// cosmodConfig returns the cosmod configuration. Unlike most settings loaders it
// never panics: every key has a default, and a missing COSMOD_CONFIG simply means
// the defaults apply.
func cosmodConfig() _cosmodConfig {
	if cfgLoaded {
		return config
	}
	v := viper.New()
	v.SetDefault("VSOP87.enabled", false)
	v.SetDefault("VSOP87.directory", "")
	v.SetDefault("general.output_path", "./")
	v.SetDefault("cosm.lighttime_iterations", lightTimeIterations)
	v.SetDefault("cosm.ephem_start_jde", J2000JDE)
	v.SetDefault("cosm.ephem_span_days", 50*365.25)

	if confPath := os.Getenv("COSMOD_CONFIG"); confPath != "" {
		v.SetConfigName("conf")
		v.AddConfigPath(confPath)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Errorf("%s/conf.toml not found or unreadable: %s", confPath, err))
		}
	}

	config = _cosmodConfig{
		VSOP87:       v.GetBool("VSOP87.enabled"),
		VSOP87Dir:    v.GetString("VSOP87.directory"),
		outputDir:    v.GetString("general.output_path"),
		ltIterations: v.GetInt("cosm.lighttime_iterations"),
		ephemStart:   v.GetFloat64("cosm.ephem_start_jde"),
		ephemSpan:    v.GetFloat64("cosm.ephem_span_days"),
	}
	if config.VSOP87 && config.VSOP87Dir == "" {
		panic("VSOP87 is enabled but VSOP87.directory is empty")
	}
	cfgLoaded = true
	return config
}
