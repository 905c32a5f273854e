package config

// Config holds app configuration
type Config struct {
	// Archive is the path of the VDFS container file every command works on
	Archive string `mapstructure:"archive"`

	// Comment and Signature override the header fields of archives that are
	// created or rewritten. Empty means keep the current value (or the
	// default signature for new archives)
	Comment   string `mapstructure:"comment"`
	Signature string `mapstructure:"signature"`

	// OutputDir is where extract writes files to
	OutputDir string `mapstructure:"output"`

	// JSON makes ls print the listing as JSON
	JSON bool `mapstructure:"json"`

	// Create makes add create the archive if it does not exist yet
	Create bool `mapstructure:"create"`
	// As is the path inside the archive add stores the file at
	As string `mapstructure:"as"`

	DryRun       bool   `mapstructure:"dry_run"`
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`
}
