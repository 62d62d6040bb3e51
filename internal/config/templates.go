package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "photon":
		return photonTemplate, nil
	case "scenario":
		return scenarioTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as the given kind.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "photon":
		_, err := LoadPhotonFile(path)
		return err
	case "scenario":
		_, err := LoadScenario(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const photonTemplate = `addr = "127.0.0.1:9001"
viewport_width = 1024
viewport_height = 768
font_size = 16
outbound_framing = "length-prefixed"
handshake_style = "legacy"
connect_timeout = "5s"
max_connect_attempts = 5
inspect_addr = "127.0.0.1:9002"
frame_output = ""
security_mode = "development"
tls_enabled = false
`

const scenarioTemplate = `name = "click-demo"
listen = "127.0.0.1:9001"
framing = "length-prefixed"
linger = "2s"

[[message]]
body = '''
[[1],
 {"update-type":"make-node","node":1,"type":"root"},
 {"update-type":"make-node","node":2,"type":"div"},
 {"update-type":"make-node","node":3,"type":"text"},
 {"update-type":"add","node":1,"attr":"children","index":0,"value":2},
 {"update-type":"add","node":2,"attr":"children","index":0,"value":3},
 {"update-type":"set-attr","node":2,"attr":"rect","value":{"x":20,"y":20,"width":240,"height":80}},
 {"update-type":"set-attr","node":2,"attr":"color","value":{"r":66,"g":135,"b":245}},
 {"update-type":"set-attr","node":2,"attr":"on-click","value":"noria-handler-sync"},
 {"update-type":"set-attr","node":3,"attr":"text","value":"click me"},
 {"update-type":"set-attr","node":3,"attr":"origin","value":{"x":40,"y":50}}]
'''

[[message]]
delay = "250ms"
await_events = 1
body = '''
[[2],
 {"update-type":"set-attr","node":3,"attr":"text","value":"clicked"}]
'''
`
