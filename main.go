package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"mini-coin-node/cmd"
	"mini-coin-node/network/message"
)

func main() {
	if err := cmd.Run(os.Args); err != nil {
		if message.IsCode(err, message.ErrStartup) {
			log.WithError(err).Fatal("node failed to start")
		}
		log.Fatal(err)
	}
}
