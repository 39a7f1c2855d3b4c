package daqmx

import (
	"fmt"
	"strings"
)

// Catalog answers questions about the devices an Inventory exposes
type Catalog struct {
	inv Inventory
}

// NewCatalog wraps an inventory.  Drivers are inventories, so a Driver may be
// passed directly.
func NewCatalog(inv Inventory) *Catalog {
	return &Catalog{inv: inv}
}

// Devices lists the device names
func (c *Catalog) Devices() ([]string, error) {
	return c.inv.Devices()
}

// Channels lists the physical channels of a kind on device, or on every
// device when device is empty
func (c *Catalog) Channels(device string, kind Kind) ([]string, error) {
	if device != "" {
		return c.inv.PhysicalChannels(device, kind)
	}
	devs, err := c.inv.Devices()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range devs {
		chans, err := c.inv.PhysicalChannels(d, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, chans...)
	}
	return out, nil
}

// Capacity is the number of channels of a kind a device has
func (c *Catalog) Capacity(device string, kind Kind) (int, error) {
	chans, err := c.inv.PhysicalChannels(device, kind)
	return len(chans), err
}

// MaxRate is the maximum sample rate of the device, Hz
func (c *Catalog) MaxRate(device string, dir Direction) (float64, error) {
	return c.inv.MaxRate(device, dir)
}

// VoltageRanges lists the voltage ranges of the device.  A device which
// reports none is assumed to be +/-10 V.
func (c *Catalog) VoltageRanges(device string, dir Direction) ([]Range, error) {
	r, err := c.inv.VoltageRanges(device, dir)
	if err != nil {
		return nil, err
	}
	if len(r) == 0 {
		r = []Range{{Min: -10, Max: 10}}
	}
	return r, nil
}

// SupportsDigitalTrigger is true if the device accepts a PFI start trigger
func (c *Catalog) SupportsDigitalTrigger(device string) (bool, error) {
	return c.inv.DigitalTriggerSupported(device)
}

// SupportsAnalogTrigger is true if the device accepts an analog edge start trigger
func (c *Catalog) SupportsAnalogTrigger(device string) (bool, error) {
	return c.inv.AnalogTriggerSupported(device)
}

// TriggerSources lists the usable start trigger sources of the devices, or of
// every device when none are given: the PFI terminals of devices that support
// digital triggering followed by the analog inputs of those that support
// analog triggering
func (c *Catalog) TriggerSources(devices ...string) ([]string, error) {
	if len(devices) == 0 {
		var err error
		devices, err = c.inv.Devices()
		if err != nil {
			return nil, err
		}
	}
	var out []string
	for _, d := range devices {
		ok, err := c.inv.DigitalTriggerSupported(d)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		terms, err := c.inv.PhysicalChannels(d, Terminals)
		if err != nil {
			return nil, err
		}
		for _, t := range terms {
			if strings.Contains(t, "PFI") {
				out = append(out, t)
			}
		}
	}
	for _, d := range devices {
		ok, err := c.inv.AnalogTriggerSupported(d)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ai, err := c.inv.PhysicalChannels(d, AnalogInput)
		if err != nil {
			return nil, err
		}
		out = append(out, ai...)
	}
	return out, nil
}

// CheckProduct returns an error if device is not present or is not of the
// given product type.  An empty product only checks presence.
func (c *Catalog) CheckProduct(device, product string) error {
	devs, err := c.inv.Devices()
	if err != nil {
		return err
	}
	found := false
	for _, d := range devs {
		if d == device {
			found = true
			break
		}
	}
	if !found {
		return &ConfigError{Param: "device", Value: device, Err: ErrUnknownName}
	}
	if product == "" {
		return nil
	}
	have, err := c.inv.ProductType(device)
	if err != nil {
		return err
	}
	if have != product {
		return &ConfigError{Param: "product type", Channel: device,
			Value: fmt.Sprintf("%s, expected %s", have, product), Err: ErrUnknownName}
	}
	return nil
}
