package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"photogallery/internal/config"
	"photogallery/internal/logging"
	"photogallery/internal/ui"
)

func main() {
	flags := pflag.NewFlagSet("photogallery", pflag.ExitOnError)
	config.AddFlags(flags)
	_ = flags.Parse(os.Args[1:])

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ui.CreateApplication(cfg, logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr))
}
