package output

import (
	"fmt"
	"sync"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/util"
)

// Port is up to eight digital lines driven as the bits of one byte, line i
// being bit i.  The lines are read back through an input task.
type Port struct {
	mu    sync.Mutex
	lines []string
	out   *daqmx.Task
	in    *daqmx.Task
	word  byte
	ready bool
}

// NewPort returns a Port over lines such as Dev1/port0/line0
func NewPort(drv daqmx.Driver, lines ...string) (*Port, error) {
	if len(lines) == 0 || len(lines) > 8 {
		return nil, &daqmx.ShapeError{Samples: 1, Channels: len(lines), Len: len(lines)}
	}
	return &Port{
		lines: append([]string(nil), lines...),
		out:   daqmx.NewTask(drv, "port-out"),
		in:    daqmx.NewTask(drv, "port-in"),
	}, nil
}

func (p *Port) configure() error {
	if p.ready {
		return nil
	}
	out := make([]daqmx.Channel, len(p.lines))
	in := make([]daqmx.Channel, len(p.lines))
	for i, l := range p.lines {
		out[i] = daqmx.DigitalOut(l)
		in[i] = daqmx.DigitalIn(l)
	}
	if err := p.out.Configure(out, nil, daqmx.Trigger{}); err != nil {
		return err
	}
	if err := p.in.Configure(in, nil, daqmx.Trigger{}); err != nil {
		p.out.Close()
		return err
	}
	p.ready = true
	return nil
}

func (p *Port) write(word byte) error {
	if err := p.configure(); err != nil {
		return err
	}
	vals := make([]uint8, len(p.lines))
	for i := range p.lines {
		if util.GetBit(word, uint(i)) {
			vals[i] = 1
		}
	}
	if err := p.out.WriteDigital(len(p.lines), vals, true); err != nil {
		return err
	}
	p.word = word
	return nil
}

// Write drives every line from the bits of word
func (p *Port) Write(word byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(word)
}

// SetLine drives one line, leaving the others as last written
func (p *Port) SetLine(line int, high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if line < 0 || line >= len(p.lines) {
		return fmt.Errorf("output: %w %d", ErrNoChannel, line)
	}
	return p.write(util.SetBit(p.word, uint(line), high))
}

// Read returns the state of the lines as the bits of a byte
func (p *Port) Read() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.configure(); err != nil {
		return 0, err
	}
	vals, err := p.in.ReadDigital(len(p.lines))
	if err != nil {
		return 0, err
	}
	var b byte
	for i, v := range vals {
		b = util.SetBit(b, uint(i), v != 0)
	}
	return b, nil
}

// GetLine returns the state of one line
func (p *Port) GetLine(line int) (bool, error) {
	if line < 0 || line >= len(p.lines) {
		return false, fmt.Errorf("output: %w %d", ErrNoChannel, line)
	}
	b, err := p.Read()
	if err != nil {
		return false, err
	}
	return util.GetBit(b, uint(line)), nil
}

// Close releases both tasks
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = false
	err := p.out.Close()
	if e := p.in.Close(); err == nil {
		err = e
	}
	return err
}
