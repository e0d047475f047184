/*
Copyright © 2026 the vecraster authors.
This file is part of vecraster.

vecraster is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

vecraster is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with vecraster.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package vecrasterutil contains the command-line interface for vecraster.
package vecrasterutil

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/vecraster"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	// Options are the configuration options available to vecraster.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel specifies the minimum severity of log messages:
              one of debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "input",
			usage: `
              input specifies the polyline or polygon shapefile to rasterize.
              It can be a local path, an http(s) URL, or a blob storage
              location (gs://, s3://, or file://).`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies the NetCDF raster file to create. It can be
              a local path or a blob storage location.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "field",
			usage: `
              field specifies the numeric attribute that supplies cell values.
              The name is case-sensitive. If the field does not exist or is
              not numeric, cells take the record number of their feature.`,
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "background",
			usage: `
              background specifies the value of cells that no feature covers.
              It is either a number or "nodata", in which case the no-data
              value is used.`,
			defaultVal: "0",
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "cellsize",
			usage: `
              cellsize specifies the width of raster cells, in the units of
              the input. If it is "not specified", the cell size is taken from
              the template raster or, without a template, the shorter side of
              the input extent is divided into 500 cells.`,
			shorthand:  "c",
			defaultVal: notSpecified,
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "template",
			usage: `
              template specifies a raster file whose extent and cell size
              the output copies. It cannot be combined with cellsize.`,
			shorthand:  "t",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "nodata",
			usage: `
              nodata specifies the value that marks cells without valid data.`,
			defaultVal: vecraster.DefaultNoData,
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "flushcells",
			usage: `
              flushcells specifies how many cells are held in memory before
              they are written to the output. The default of 0 derives the
              number from the memory available to the process.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers specifies how many features are rasterized at once.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("VECRASTER")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(rasterizeCmd)
	Root.AddCommand(describeCmd)
}

// defaultConfig returns a configuration holding the default value of
// every option.
func defaultConfig() *viper.Viper {
	v := viper.New()
	for _, option := range options {
		v.SetDefault(option.name, option.defaultVal)
	}
	return v
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("vecraster: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "vecraster",
	Short: "Convert vector lines and polygons to rasters.",
	Long: `vecraster converts the lines and polygon outlines in a shapefile into
a NetCDF raster. Every cell that a feature passes through takes the value of
a numeric attribute of the feature, or its record number.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'VECRASTER_var' where 'var'
is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of vecraster.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("vecraster v%s\n", vecraster.Version)
	},
	DisableAutoGenTag: true,
}

// rasterizeCmd converts a shapefile to a raster.
var rasterizeCmd = &cobra.Command{
	Use:   "rasterize",
	Short: "Rasterize a polyline or polygon shapefile.",
	Long: `rasterize writes every feature of the input shapefile into a new
NetCDF raster. Where features overlap, the southernmost feature wins.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(Cfg.GetString("loglevel"), cmd.OutOrStderr())
		if err != nil {
			return err
		}
		o, err := ParseOptions(Cfg)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		res, err := Rasterize(ctx, o, log)
		if err != nil {
			return err
		}
		if res.Status == vecraster.Cancelled {
			return fmt.Errorf("vecraster: rasterization cancelled")
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// describeCmd prints information about a raster.
var describeCmd = &cobra.Command{
	Use:   "describe raster.ncf",
	Short: "Describe a raster file.",
	Long: `describe prints the extent, cell size, value type, and metadata of a
raster created by vecraster.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(Cfg.GetString("loglevel"), cmd.OutOrStderr())
		if err != nil {
			return err
		}
		return Describe(context.Background(), cmd.OutOrStdout(), args[0], log)
	},
	DisableAutoGenTag: true,
}
