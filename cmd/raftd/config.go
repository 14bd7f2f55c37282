package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/KilimcininKorOglu/raftd/internal/config"
)

// configCmd handles the config command.
func configCmd(args []string) int {
	if len(args) == 0 {
		printConfigUsage(os.Stdout)
		return 0
	}

	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(os.Stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		return configValidateCmd(args[1:])
	case "init":
		return configInitCmd(args[1:])
	case "show":
		return configShowCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Run 'raftd config help' for usage.")
		return 1
	}
}

// configValidateCmd handles the config validate subcommand.
func configValidateCmd(args []string) int {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configFile := fs.String("config", "", "Path to configuration file")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Println("Validate configuration file")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  raftd config validate [options]")
		fmt.Println()
		fmt.Println("Options:")
		fmt.Println("  -config string")
		fmt.Println("        Path to configuration file (required)")
		return 0
	}

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		return 1
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	if !reportValidation(cfg) {
		return 1
	}

	fmt.Println("Configuration is valid")
	return 0
}

// reportValidation prints validation errors to stderr and reports whether
// the configuration is valid.
func reportValidation(cfg *config.Config) bool {
	errs := config.ValidateConfig(cfg)
	if len(errs) == 0 {
		return true
	}
	fmt.Fprintln(os.Stderr, "Configuration errors:")
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  - %s\n", e)
	}
	return false
}

// configInitCmd handles the config init subcommand.
func configInitCmd(args []string) int {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Println("Generate default configuration")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  raftd config init")
		fmt.Println()
		fmt.Println("Outputs default configuration to stdout in YAML format.")
		return 0
	}

	fmt.Print(marshalConfigToYAML(config.DefaultConfig()))
	return 0
}

// configShowCmd handles the config show subcommand.
func configShowCmd(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configFile := fs.String("config", "", "Path to configuration file")
	format := fs.String("format", "yaml", "Output format (yaml, json)")
	section := fs.String("section", "", "Show a single section")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Println("Show effective configuration")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  raftd config show [options]")
		fmt.Println()
		fmt.Println("Options:")
		fmt.Println("  -config string")
		fmt.Println("        Path to configuration file")
		fmt.Println("  -format string")
		fmt.Println("        Output format: yaml, json (default \"yaml\")")
		fmt.Println("  -section string")
		fmt.Println("        Show a single section as JSON")
		return 0
	}

	var cfg *config.Config
	var err error

	if *configFile != "" {
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if err := applyEnvOverrides(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment override: %v\n", err)
		return 1
	}

	manager := config.NewConfigManager(cfg, *configFile)

	if *section != "" {
		value, err := manager.GetSection(*section)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return printJSON(value)
	}

	switch strings.ToLower(*format) {
	case "json":
		return printJSON(manager.ToJSON())
	default:
		fmt.Print(marshalConfigToYAML(cfg))
	}

	return 0
}

func printJSON(v interface{}) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal config: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern RAFTD_<SECTION>_<KEY>.
func applyEnvOverrides(cfg *config.Config) error {
	if v := os.Getenv("RAFTD_NODE_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("RAFTD_NODE_ID: %w", err)
		}
		cfg.Node.ID = id
	}
	if v := os.Getenv("RAFTD_NODE_ADDR"); v != "" {
		cfg.Node.Addr = v
	}
	if v := os.Getenv("RAFTD_NODE_DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}

	if v := os.Getenv("RAFTD_TRANSPORT_KIND"); v != "" {
		cfg.Transport.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("RAFTD_TRANSPORT_SPOOL_DIR"); v != "" {
		cfg.Transport.SpoolDir = v
	}

	if v := os.Getenv("RAFTD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RAFTD_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RAFTD_LOGGING_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
	return nil
}

// marshalConfigToYAML converts a Config to YAML format with a header.
func marshalConfigToYAML(cfg *config.Config) string {
	var sb strings.Builder

	sb.WriteString("# raftd node configuration\n")
	sb.WriteString("# Generated by: raftd config init\n\n")
	sb.WriteString(config.NewConfigManager(cfg, "").YAML())

	return sb.String()
}
