package main

import (
	"os"

	"github.com/golang/glog"
	"quizbot-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}
