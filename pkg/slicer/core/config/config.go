// Package config provides structures and utilities for managing the lamina
// pipeline configuration: the process/machine configuration snapshot consumed
// by the slicing core plus the ambient application settings.
package config

// EmbeddedConfig holds the content of the configuration file, typically passed
// from main.go when loading configuration from an embedded source.
type EmbeddedConfig []byte

// GCodeFlavor identifies the target firmware dialect.
type GCodeFlavor string

const (
	FlavorMarlinLegacy   GCodeFlavor = "marlin"
	FlavorMarlinFirmware GCodeFlavor = "marlin2"
	FlavorKlipper        GCodeFlavor = "klipper"
	FlavorRepRapSprinter GCodeFlavor = "reprap"
	FlavorRepRapFirmware GCodeFlavor = "reprapfirmware"
	FlavorRepetier       GCodeFlavor = "repetier"
	FlavorSmoothie       GCodeFlavor = "smoothie"
	FlavorTeacup         GCodeFlavor = "teacup"
)

// SupportsWipeTower reports whether the flavor is on the purge-tower
// compatibility allow-list.
func (f GCodeFlavor) SupportsWipeTower() bool {
	switch f {
	case FlavorRepRapSprinter, FlavorRepRapFirmware, FlavorRepetier,
		FlavorMarlinLegacy, FlavorMarlinFirmware, FlavorKlipper:
		return true
	default:
		return false
	}
}

// DraftShield selects the draft shield mode.
type DraftShield string

const (
	DraftShieldDisabled DraftShield = "disabled"
	DraftShieldLimited  DraftShield = "limited"
	DraftShieldEnabled  DraftShield = "enabled"
)

// SupportStyle selects the support generation style for an entity.
type SupportStyle string

const (
	SupportStyleGrid    SupportStyle = "grid"
	SupportStyleSnug    SupportStyle = "snug"
	SupportStyleOrganic SupportStyle = "organic"
)

// PrintConfig is the shared process/machine configuration snapshot. Field
// names follow the externally defined configuration-key namespace; the yaml
// tag of each field is its configuration-key name.
type PrintConfig struct {
	// Skirt / brim.
	Skirts         int         `yaml:"skirts"`
	SkirtHeight    int         `yaml:"skirt_height"`
	SkirtDistance  float64     `yaml:"skirt_distance"`
	MinSkirtLength float64     `yaml:"min_skirt_length"`
	DraftShield    DraftShield `yaml:"draft_shield"`
	BrimWidth      float64     `yaml:"brim_width"`

	// Sequential printing.
	CompleteObjects         bool    `yaml:"complete_objects"`
	ExtruderClearanceRadius float64 `yaml:"extruder_clearance_radius"`
	ExtruderClearanceHeight float64 `yaml:"extruder_clearance_height"`

	// Global geometry limits and modes.
	SpiralVase                   bool    `yaml:"spiral_vase"`
	AvoidCrossingPerimeters      bool    `yaml:"avoid_crossing_perimeters"`
	AvoidCrossingCurledOverhangs bool    `yaml:"avoid_crossing_curled_overhangs"`
	MaxPrintHeight               float64 `yaml:"max_print_height"`

	// Extruder hardware, one entry per extruder.
	NozzleDiameter   []float64 `yaml:"nozzle_diameter"`
	FilamentDiameter []float64 `yaml:"filament_diameter"`

	// First layer.
	FirstLayerHeight         float64 `yaml:"first_layer_height"`
	FirstLayerExtrusionWidth float64 `yaml:"first_layer_extrusion_width"`

	// G-code dialect and extruder addressing.
	GCodeFlavor           GCodeFlavor `yaml:"gcode_flavor"`
	UseRelativeEDistances bool        `yaml:"use_relative_e_distances"`
	UseVolumetricE        bool        `yaml:"use_volumetric_e"`

	// Multi-material.
	OozePrevention                  bool        `yaml:"ooze_prevention"`
	SingleExtruderMultiMaterial     bool        `yaml:"single_extruder_multi_material"`
	WipeTower                       bool        `yaml:"wipe_tower"`
	WipeTowerX                      float64     `yaml:"wipe_tower_x"`
	WipeTowerY                      float64     `yaml:"wipe_tower_y"`
	WipeTowerWidth                  float64     `yaml:"wipe_tower_width"`
	WipeTowerRotationAngle          float64     `yaml:"wipe_tower_rotation_angle"`
	WipeTowerBrimWidth              float64     `yaml:"wipe_tower_brim_width"`
	WipingVolumesMatrix             [][]float64 `yaml:"wiping_volumes_matrix"`
	FilamentMinimalPurgeOnWipeTower []float64   `yaml:"filament_minimal_purge_on_wipe_tower"`

	// Custom G-code hooks.
	LayerGCode       string `yaml:"layer_gcode"`
	BeforeLayerGCode string `yaml:"before_layer_gcode"`
}

// NozzleDiameterAt returns the nozzle diameter for the given extruder,
// falling back to the first entry for out-of-range indices.
func (c *PrintConfig) NozzleDiameterAt(extruder int) float64 {
	return floatAt(c.NozzleDiameter, extruder)
}

// FilamentDiameterAt returns the filament diameter for the given extruder.
func (c *PrintConfig) FilamentDiameterAt(extruder int) float64 {
	return floatAt(c.FilamentDiameter, extruder)
}

// MinimalPurgeAt returns the configured forced-purge floor for an extruder.
func (c *PrintConfig) MinimalPurgeAt(extruder int) float64 {
	return floatAt(c.FilamentMinimalPurgeOnWipeTower, extruder)
}

func floatAt(values []float64, i int) float64 {
	if len(values) == 0 {
		return 0
	}
	if i < 0 || i >= len(values) {
		return values[0]
	}
	return values[i]
}

// DatabaseConfig holds the connection settings for the run-history store.
type DatabaseConfig struct {
	// Type selects the gorm dialector: "sqlite", "mysql", "postgres" or
	// "inmemory" to skip persistence entirely.
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// ExportConfig holds the export-stage output settings.
type ExportConfig struct {
	// OutputDir is the directory receiving the toolpath summary and reports.
	OutputDir string `yaml:"output_dir"`
	// ParquetReport enables the purge-event Parquet report next to the summary.
	ParquetReport bool `yaml:"parquet_report"`
	// CompressionType is the Parquet compression ("SNAPPY", "GZIP", "NONE").
	CompressionType string `yaml:"compression_type"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// PipelineConfig holds pipeline-level settings.
type PipelineConfig struct {
	// Name labels pipeline runs in the run history and metrics.
	Name string `yaml:"name"`
	// JobFile optionally points at a YAML job description to load at startup.
	JobFile string `yaml:"job_file"`
}

// LaminaConfig holds all configuration under the "lamina" top-level key.
type LaminaConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	System   SystemConfig   `yaml:"system"`
	Database DatabaseConfig `yaml:"database"`
	Export   ExportConfig   `yaml:"export"`
	Print    PrintConfig    `yaml:"print"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Lamina LaminaConfig `yaml:"lamina"`
	// EmbeddedConfig holds configuration loaded from an embedded source.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Lamina: LaminaConfig{
			Pipeline: PipelineConfig{Name: "lamina"},
			System:   SystemConfig{Logging: LoggingConfig{Level: "INFO"}},
			Database: DatabaseConfig{Type: "inmemory"},
			Export:   ExportConfig{OutputDir: ".", CompressionType: "SNAPPY"},
			Print: PrintConfig{
				Skirts:                  1,
				SkirtHeight:             1,
				SkirtDistance:           6,
				DraftShield:             DraftShieldDisabled,
				ExtruderClearanceRadius: 20,
				ExtruderClearanceHeight: 20,
				MaxPrintHeight:          200,
				NozzleDiameter:          []float64{0.4},
				FilamentDiameter:        []float64{1.75},
				FirstLayerHeight:        0.2,
				GCodeFlavor:             FlavorMarlinLegacy,
				WipeTowerWidth:          60,
			},
		},
	}
}

// GlobalConfig is a pointer to the configuration instance shared across the
// application. It is expected to be set via fx.Supply or fx.Provide.
var GlobalConfig *Config
