package main

import (
	"flag"
	"log"

	"github.com/checkmarble/agent-eval-backend/cmd"
)

func main() {
	shouldRunMigrations := flag.Bool("migrations", false, "Run migrations")
	shouldRunServer := flag.Bool("server", false, "Run server")
	shouldRunWorker := flag.Bool("worker", false, "Run the task queue worker")
	flag.Parse()

	if *shouldRunMigrations {
		if err := cmd.RunMigrations(); err != nil {
			log.Fatal(err)
		}
	}

	switch {
	case *shouldRunServer:
		if err := cmd.RunServer(); err != nil {
			log.Fatal(err)
		}
	case *shouldRunWorker:
		if err := cmd.RunTaskQueue(); err != nil {
			log.Fatal(err)
		}
	}
}
