package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/robotalks/robocore/pkg/env"
	"github.com/robotalks/robocore/pkg/framework"
)

var configFile string

func init() {
	env.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML configuration file")
}

func main() {
	flag.Parse()

	conf := env.NewConfig()
	if configFile != "" {
		var err error
		if conf, err = env.Load(configFile); err != nil {
			log.Fatalln(err)
		}
	}
	e := conf.MustNewEnv()
	defer e.Close()

	loop := framework.NewLoop().Add(e)
	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun("loop", loop))
	if err := runner.Wait(); err != nil {
		log.Println(err)
	}
}
