package main

import (
	"flag"
	"os"

	"github.com/ValerySidorin/ytgrab/pkg/ytgrab"
	util_log "github.com/ValerySidorin/ytgrab/pkg/util/log"
)

func main() {
	var cfg ytgrab.Config

	err := ytgrab.LoadConfig(flag.CommandLine, os.Args[1:], &cfg)
	util_log.CheckFatal("loading config", err)

	util_log.InitLogger(&cfg.Log)

	y, err := ytgrab.New(cfg)
	util_log.CheckFatal("initializing application", err)

	err = y.Run()
	util_log.CheckFatal("running application", err)
}
