// Package device turns kernel block-device chaos into stable facts: a
// normalizer for bus-relative topology paths, a sysfs/udev-backed scanner,
// an auto-mount policy for output interfaces, and a background host sampler.
package device

import "strings"

// Normalize rewrites a raw topology path (as reported by a udevadm-style
// enumerator's ID_PATH property) into its canonical, reboot-stable form.
// It strips a trailing ".0" segment and rewrites known bus aliases so the
// same physical port always maps to the same Interface row regardless of
// kernel enumeration order. Normalize is idempotent.
func Normalize(topologyPath string) string {
	path := topologyPath
	path = strings.TrimSuffix(path, ".0")

	for alias, canonical := range busAliases {
		if strings.Contains(path, alias) {
			path = strings.ReplaceAll(path, alias, canonical)
		}
	}
	return path
}

// busAliases maps volatile bus-naming variants onto the canonical token used
// in persisted stable paths. usbv3 controllers enumerate identically to
// usb2 ones except for this token, so the two must collapse to one row.
var busAliases = map[string]string{
	"usbv3": "usb",
	"usbv2": "usb",
}
