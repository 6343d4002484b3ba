// Package config handles loading and validating Gray Logic driver configuration.
//
// This package manages:
//   - Loading configuration from YAML (default) or TOML files
//   - Overriding with environment variables
//   - Role validation for the driver agent and the authority service
//   - Default value handling
//
// Security Considerations:
//   - Token secrets and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/driver.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ValidateAgent(); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Driver.ServiceName)
package config
