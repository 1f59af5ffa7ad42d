package conf

import (
	"github.com/spf13/viper"

	"github.com/nilomr/majorvocal/internal/buildinfo"
)

// Context holds the application state shared by the commands: the viper
// instance flags are bound to, the loaded settings and build metadata.
type Context struct {
	Viper      *viper.Viper
	ConfigFile string    // explicit --config path, empty to search the default paths
	Settings   *Settings // set by Load
	BuildInfo  *buildinfo.Context
}

// NewContext creates a Context with a fresh viper instance.
func NewContext(build *buildinfo.Context) (*Context, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	return &Context{Viper: v, BuildInfo: build}, nil
}

// Load reads the configuration into ctx.Settings.
func (ctx *Context) Load() error {
	settings, err := Load(ctx.Viper, ctx.ConfigFile)
	if err != nil {
		return err
	}
	ctx.Settings = settings
	return nil
}
