package daqmx

import "time"

// WriteAnalog writes samples values per channel to an analog output task.
// values holds samples*channels entries grouped by channel.  A single value
// is written with the scalar procedure, anything longer is buffered.  The
// number of samples per channel written is returned.
func (t *Task) WriteAnalog(samples, channels int, values []float64, autostart bool) (int, error) {
	if samples < 1 || channels < 1 || len(values) != samples*channels {
		return 0, &ShapeError{Samples: samples, Channels: channels, Len: len(values)}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open || t.channels[0].Kind != AnalogOutput {
		return 0, invalidState("analog write", t.state)
	}
	if channels != len(t.channels) {
		return 0, &ShapeError{Samples: samples, Channels: channels, Len: len(values)}
	}
	if len(values) == 1 {
		if err := t.drv.WriteAnalogScalarF64(t.handle, autostart, t.WriteTimeout, values[0]); err != nil {
			return 0, enrich(err, "WriteAnalogScalarF64", t.channels[0].Name)
		}
		t.scalar = true
		t.lastW = values[0]
		t.writeBuf = nil
		return 1, nil
	}

	buf := append([]float64(nil), values...)
	n, err := t.drv.WriteAnalogF64(t.handle, samples, autostart, t.WriteTimeout, buf)
	if err != nil {
		return n, enrich(err, "WriteAnalogF64", "")
	}
	if n != samples {
		return n, &ShortIOError{Op: "written", Actual: n, Expected: samples}
	}
	t.scalar = false
	t.writeBuf = buf
	if autostart && t.state != Running && t.timing != nil && t.timing.Samples() > 1 {
		t.state = Running
	}
	return n, nil
}

// LastWrite returns the value most recently generated.  For a scalar write
// it is the value written; for a buffered write it is the buffer entry at
// the device's current write position.  It is zero before any write.
func (t *Task) LastWrite() (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scalar {
		return t.lastW, nil
	}
	if !t.open || len(t.writeBuf) == 0 {
		return 0, nil
	}
	pos, err := t.drv.GetWriteCurrWritePos(t.handle)
	if err != nil {
		return 0, enrich(err, "GetWriteCurrWritePos", "")
	}
	return t.writeBuf[pos%uint64(len(t.writeBuf))], nil
}

// ReadAnalog reads clock.SampleCount samples from each of channels analog
// inputs, grouped by channel.  The read times out after twice the nominal
// acquisition time; a partial read is an error and returns no data.
func (t *Task) ReadAnalog(channels int, clock Clock) ([]float64, error) {
	n := clock.SampleCount
	if n < 1 || channels < 1 || clock.Frequency <= 0 {
		return nil, &ConfigError{Param: "read", Value: "samples/channels/frequency", Err: ErrInvalidTiming}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open || t.channels[0].Kind != AnalogInput {
		return nil, invalidState("analog read", t.state)
	}
	if channels != len(t.channels) {
		return nil, &ShapeError{Samples: n, Channels: channels, Len: n * len(t.channels)}
	}
	buf := make([]float64, n*channels)
	read, err := t.drv.ReadAnalogF64(t.handle, n, clock.ReadTimeout(), buf)
	if err != nil {
		return nil, enrich(err, "ReadAnalogF64", "")
	}
	if read != n {
		return nil, &ShortIOError{Op: "read", Actual: read, Expected: n}
	}
	return buf, nil
}

// ReadCounter reads one value from each of channels counters, then stops the
// task so the next read starts a fresh count.  The read times out after
// twice countingTime seconds.
func (t *Task) ReadCounter(channels int, countingTime float64) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out, err := t.readCounter(channels, secs(2*countingTime))
	if t.open {
		// the read implicitly started a configured task
		if e := t.stop(); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadCounterContinuous is ReadCounter without the trailing stop, for
// counters sampled on a clock
func (t *Task) ReadCounterContinuous(channels int, timeout time.Duration) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readCounter(channels, timeout)
}

func (t *Task) readCounter(channels int, timeout time.Duration) ([]uint32, error) {
	if channels < 1 {
		return nil, &ShapeError{Samples: 1, Channels: channels}
	}
	if !t.open || t.channels[0].Kind != CounterInput {
		return nil, invalidState("counter read", t.state)
	}
	if channels != len(t.channels) {
		return nil, &ShapeError{Samples: 1, Channels: channels, Len: len(t.channels)}
	}
	buf := make([]uint32, channels)
	read, err := t.drv.ReadCounterU32(t.handle, 1, timeout, buf)
	if err != nil {
		return nil, enrich(err, "ReadCounterU32", "")
	}
	if read != 1 {
		return nil, &ShortIOError{Op: "read", Actual: read, Expected: 1}
	}
	return buf, nil
}

// ReadDigital reads one sample of each of lines digital lines
func (t *Task) ReadDigital(lines int) ([]uint8, error) {
	if lines < 1 {
		return nil, &ShapeError{Samples: 1, Channels: lines}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open || t.channels[0].Kind != DigitalInput {
		return nil, invalidState("digital read", t.state)
	}
	buf := make([]uint8, lines)
	read, err := t.drv.ReadDigitalLines(t.handle, 1, 0, buf)
	if err != nil {
		return nil, enrich(err, "ReadDigitalLines", "")
	}
	if read != 1 {
		return nil, &ShortIOError{Op: "read", Actual: read, Expected: 1}
	}
	return buf, nil
}

// WriteDigital writes one sample to each of lines digital lines.  Non zero
// values drive the line high.
func (t *Task) WriteDigital(lines int, values []uint8, autostart bool) error {
	if lines < 1 || len(values) != lines {
		return &ShapeError{Samples: 1, Channels: lines, Len: len(values)}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open || t.channels[0].Kind != DigitalOutput {
		return invalidState("digital write", t.state)
	}
	buf := make([]uint8, lines)
	for i, v := range values {
		if v != 0 {
			buf[i] = 1
		}
	}
	n, err := t.drv.WriteDigitalLines(t.handle, 1, autostart, t.WriteTimeout, buf)
	if err != nil {
		return enrich(err, "WriteDigitalLines", "")
	}
	if n != 1 {
		return &ShortIOError{Op: "written", Actual: n, Expected: 1}
	}
	return nil
}
