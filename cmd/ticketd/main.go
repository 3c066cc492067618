package main

import (
	"log"

	"github.com/guildkit/ticketd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
