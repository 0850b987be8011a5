package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type CmdArgs struct {
	Extract ExtractArgs `command:"extract" description:"Extract FLNTU water quality tables for the given years and loggers"`
}

func main() {
	// .env holds the optional overrides (FLNTU_CATALOG_URL, FLNTU_DATASET_URL)
	// and the Postgres connection string (WQ_CONN_STRING)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded, using the environment as is")
	}

	args := CmdArgs{}
	if _, err := flags.Parse(&args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		fmt.Println("See 'flntu_extractor -h' for help")
		os.Exit(1)
	}

	log.Println("FLNTU extractor finished without errors.")
}
