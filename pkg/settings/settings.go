package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// EnvSettingsPath overrides the settings file path when set.
const EnvSettingsPath = "COCO_POLICY_SETTINGS_PATH"

const defaultPath = "./genpolicy-settings.json"

// Common holds settings shared by all workload kinds.
type Common struct {
	// VirtioBlkStorageClasses lists the storage classes whose claims are
	// attached to the guest as virtio block devices.
	VirtioBlkStorageClasses []string `json:"virtio_blk_storage_classes"`

	// SMBStorageClasses lists the storage classes whose claims are mounted
	// as SMB network shares.
	SMBStorageClasses []string `json:"smb_storage_classes"`
}

// Settings is the parsed settings document.
type Settings struct {
	Common Common `json:"common"`
}

// Load reads the settings from a file path. If path is empty it falls back to
// the COCO_POLICY_SETTINGS_PATH environment variable and then to
// "./genpolicy-settings.json".
func Load(path string) (*Settings, error) {
	if path == "" {
		path = os.Getenv(EnvSettingsPath)
	}
	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return &s, nil
}

// IsVirtioBlkStorageClass reports whether the storage class is configured as
// block-device backed.
func (s *Settings) IsVirtioBlkStorageClass(class string) bool {
	return slices.Contains(s.Common.VirtioBlkStorageClasses, class)
}

// IsSMBStorageClass reports whether the storage class is configured as
// network-share backed.
func (s *Settings) IsSMBStorageClass(class string) bool {
	return slices.Contains(s.Common.SMBStorageClasses, class)
}
