package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter file for kind "mapping" or "helper".
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "mapping":
		return mappingTemplate, nil
	case "helper":
		return helperTemplate, nil
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

const mappingTemplate = `# Overlay mapping. Omitted sections keep the revision's defaults.
revision = "core"
classes = ["android/os/Build", "android/os/Build$VERSION"]
fields = ["BRAND", "DEVICE", "MANUFACTURER", "MODEL", "FINGERPRINT", "PRODUCT"]

[[property]]
name = "ro.product.brand"
field = "BRAND"

[[property]]
name = "ro.product.device"
field = "DEVICE"

[[property]]
name = "ro.product.manufacturer"
field = "MANUFACTURER"

[[property]]
name = "ro.product.model"
field = "MODEL"

[[property]]
name = "ro.product.name"
field = "PRODUCT"

[[property]]
name = "ro.build.fingerprint"
field = "FINGERPRINT"
`

const helperTemplate = `config_path = "/data/adb/modules/COPG/config.json"
socket_path = "/dev/socket/devprofiled"
socket_mode = "0660"
max_document_bytes = 4194304
metrics_addr = ""
`
