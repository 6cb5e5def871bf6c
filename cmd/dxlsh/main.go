package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/robotalks/robocore/pkg/cli/sh"
	"github.com/robotalks/robocore/pkg/env"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	conf := env.NewConfig()
	model, err := conf.Model()
	if err != nil {
		log.Fatalln(err)
	}
	chain, _, closers, err := conf.OpenChain()
	if err != nil {
		log.Fatalln(err)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	sh.New(chain, model).Run(flag.Args()...)
}
