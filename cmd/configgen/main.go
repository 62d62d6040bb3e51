package main

import (
	"flag"
	"log"

	"github.com/danmuck/photon/internal/config"
)

func main() {
	kind := flag.String("kind", "photon", "config kind: photon|scenario")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	path := *output
	if *validate {
		path = *input
	}
	if path == "" {
		switch *kind {
		case "photon":
			path = "cmd/photon/config.toml"
		case "scenario":
			path = "cmd/peerctl/scenario.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if *validate {
		if err := config.Validate(path, *kind); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	if err := config.WriteTemplate(path, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, path)
}
