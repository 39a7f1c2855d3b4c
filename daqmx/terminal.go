package daqmx

import "strings"

// InternalOutput is the terminal carrying a counter's output pulses, usable
// as the sample clock source of another task.  "Dev1/ctr0" becomes
// "/Dev1/ctr0InternalOutput".
func InternalOutput(counter string) string {
	return "/" + strings.TrimPrefix(counter, "/") + "InternalOutput"
}

// DevicePrefix returns the device part of a device qualified name,
// "Dev1/ai0" and "/Dev1/PFI0" both give "Dev1"
func DevicePrefix(name string) string {
	name = strings.TrimPrefix(name, "/")
	if i := strings.Index(name, "/"); i >= 0 {
		return name[:i]
	}
	return name
}
