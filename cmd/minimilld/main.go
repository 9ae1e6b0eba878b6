// Command minimilld runs the minimill daemon with the default configuration
// search path. `minimill serve` is the same daemon behind CLI flags.
package main

import (
	"context"
	"flag"
	"log"

	"minimill/internal/config"
	"minimill/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override logging.level")
	flag.Parse()

	if err := run(context.Background(), *configPath, *logLevel); err != nil {
		log.Fatalf("minimilld: %v", err)
	}
}

func run(ctx context.Context, configPath, logLevel string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return daemonrun.Run(ctx, cfg, daemonrun.Options{LogLevel: logLevel})
}
