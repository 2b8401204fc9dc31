package osc

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Method is an interface for OSC Methods.
type Method interface {
	HandleMessage(msg *Message)
}

// MethodFunc implements the Method interface. Type definition for an OSC Method function.
type MethodFunc func(msg *Message)

// HandleMessage calls itself with the given OSC Message. Implements the Method interface.
func (f MethodFunc) HandleMessage(msg *Message) {
	f(msg)
}

// Dispatcher handles the dispatching of received OSC Packets to Methods for their given Address.
type Dispatcher struct {
	methods map[string]Method
}

// AddMethod adds a new OSC Method for the given OSC Address.
func (d *Dispatcher) AddMethod(addr string, method Method) error {
	if d.methods == nil {
		d.methods = make(map[string]Method)
	}

	if !strings.HasPrefix(addr, "/") || strings.ContainsAny(addr, "*?,[]{}# ") {
		return fmt.Errorf("AddMethod: OSC Method must start with '/' and may not contain any characters in \"*?,[]{}# \"")
	}

	if _, ok := d.methods[addr]; ok {
		return fmt.Errorf("AddMethod: OSC Method exists already")
	}

	d.methods[addr] = method
	return nil
}

// AddMethodFunc allows you to just pass a MethodFunc.
func (d *Dispatcher) AddMethodFunc(addr string, method MethodFunc) error {
	return d.AddMethod(addr, method)
}

// Dispatch dispatches OSC Packets. Methods are called in address order;
// bundle elements are dispatched in bundle order once the bundle's time tag
// is due.
func (d *Dispatcher) Dispatch(packet Packet) error {
	switch p := packet.(type) {
	default:
		return fmt.Errorf("dispatch: invalid Packet: %v", p)

	case *Message:
		pattern, err := CompilePattern(p.Address)
		if err != nil {
			return fmt.Errorf("dispatch: invalid address %q: %w", p.Address, err)
		}
		addrs := make([]string, 0, len(d.methods))
		for addr := range d.methods {
			if pattern.Match(addr) {
				addrs = append(addrs, addr)
			}
		}
		sort.Strings(addrs)
		for _, addr := range addrs {
			d.methods[addr].HandleMessage(p)
		}

	case *Bundle:
		if wait := p.Timetag.ExpiresIn(); wait > 0 {
			time.AfterFunc(wait, func() {
				_ = d.dispatchElements(p)
			})
			return nil
		}
		return d.dispatchElements(p)
	}
	return nil
}

func (d *Dispatcher) dispatchElements(b *Bundle) error {
	for _, elem := range b.Elements {
		if err := d.Dispatch(elem); err != nil {
			return err
		}
	}
	return nil
}
