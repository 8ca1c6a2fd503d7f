// Package config loads rheobench settings from defaults, an optional YAML
// file and RHEOBENCH_* environment variables, and maps them onto the option
// structs of the numerical core.
package config

import (
	"log/slog"

	"github.com/alexshd/rheobench"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log" validate:"required"`
	Grid      GridConfig      `mapstructure:"grid" validate:"required"`
	Fit       FitConfig       `mapstructure:"fit" validate:"required"`
	Outliers  OutliersConfig  `mapstructure:"outliers" validate:"required"`
	Aggregate AggregateConfig `mapstructure:"aggregate" validate:"required"`
	Store     StoreConfig     `mapstructure:"store" validate:"required"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// GridConfig sizes the Bagley/Mooney target grid.
type GridConfig struct {
	Targets int `mapstructure:"targets" validate:"gte=2"`
}

// FitConfig bounds the Levenberg-Marquardt fitter.
type FitConfig struct {
	MaxIterations    int     `mapstructure:"max_iterations" validate:"gt=0"`
	Tolerance        float64 `mapstructure:"tolerance" validate:"gt=0"`
	ImprovementRatio float64 `mapstructure:"improvement_ratio" validate:"gt=0,lte=1"`
	ParamFloor       float64 `mapstructure:"param_floor" validate:"gt=0"`
	MaxIndex         float64 `mapstructure:"max_index" validate:"gt=0"`
}

// OutliersConfig controls the residual outlier filter.
type OutliersConfig struct {
	Multiplier  float64 `mapstructure:"multiplier" validate:"gt=0"`
	Interactive bool    `mapstructure:"interactive"`
}

// AggregateConfig controls replicate aggregation.
type AggregateConfig struct {
	IQRFactor    float64 `mapstructure:"iqr_factor" validate:"gt=0"`
	MinGroupSize int     `mapstructure:"min_group_size" validate:"gte=1"`
	BinDecimals  int     `mapstructure:"bin_decimals" validate:"gte=0,lte=6"`
}

// StoreConfig locates the session database.
type StoreConfig struct {
	// Path of the sqlite file; ":memory:" keeps sessions for the process only.
	Path string `mapstructure:"path" validate:"required"`
}

// FitOptions maps the fit section onto the core fitter options.
func (c *Config) FitOptions(logger *slog.Logger) rheobench.FitOptions {
	return rheobench.FitOptions{
		MaxIterations:    c.Fit.MaxIterations,
		Tolerance:        c.Fit.Tolerance,
		ImprovementRatio: c.Fit.ImprovementRatio,
		ParamFloor:       c.Fit.ParamFloor,
		MaxIndex:         c.Fit.MaxIndex,
		Logger:           logger,
	}
}

// PipelineOptions maps the grid and fit sections onto the core pipeline options.
func (c *Config) PipelineOptions(logger *slog.Logger) rheobench.PipelineOptions {
	return rheobench.PipelineOptions{
		Targets: c.Grid.Targets,
		Fit:     c.FitOptions(logger),
		Logger:  logger,
	}
}

// AggregateOptions maps the aggregate section onto the core aggregator options.
func (c *Config) AggregateOptions() rheobench.AggregateOptions {
	return rheobench.AggregateOptions{
		IQRFactor:    c.Aggregate.IQRFactor,
		MinGroupSize: c.Aggregate.MinGroupSize,
		BinDecimals:  c.Aggregate.BinDecimals,
	}
}
