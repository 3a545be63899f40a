package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var errNotFound = errors.New("no element matches locator")

// fakeElement models a form widget. readonly ignores typing and clearing;
// scriptBlocked reverts values written from script.
type fakeElement struct {
	value         string
	hidden        bool
	readonly      bool
	scriptBlocked bool
}

type cellEffect struct {
	field string
	value string
}

// fakePage is an in-memory Page. Clicking a locator registered in cells writes
// the cell's value into the linked field, the way a calendar pick does.
type fakePage struct {
	mu       sync.Mutex
	elements map[string]*fakeElement
	visible  map[string][]string
	cells    map[string]cellEffect
	clickErr map[string]error
	closed   bool
	calls    []string
}

func newFakePage() *fakePage {
	return &fakePage{
		elements: map[string]*fakeElement{},
		visible:  map[string][]string{},
		cells:    map[string]cellEffect{},
		clickErr: map[string]error{},
	}
}

func (p *fakePage) add(loc string, el *fakeElement) *fakeElement {
	p.elements[loc] = el
	return el
}

func (p *fakePage) record(method, loc string) error {
	p.calls = append(p.calls, method+" "+loc)
	if p.closed {
		return ErrPageClosed
	}
	return nil
}

func (p *fakePage) lookup(loc string) (*fakeElement, error) {
	el, ok := p.elements[loc]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotFound, loc)
	}
	return el, nil
}

func (p *fakePage) methods() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.calls))
	for _, c := range p.calls {
		m, _, _ := strings.Cut(c, " ")
		out = append(out, m)
	}
	return out
}

func (p *fakePage) called(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (p *fakePage) WaitClickable(_ context.Context, loc string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("WaitClickable", loc); err != nil {
		return err
	}
	if _, ok := p.cells[loc]; ok {
		return nil
	}
	el, err := p.lookup(loc)
	if err != nil {
		return err
	}
	if el.hidden {
		return fmt.Errorf("element %s is not clickable", loc)
	}
	return nil
}

func (p *fakePage) WaitPresent(_ context.Context, loc string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("WaitPresent", loc); err != nil {
		return err
	}
	_, err := p.lookup(loc)
	return err
}

func (p *fakePage) ScrollIntoView(_ context.Context, loc string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ScrollIntoView", loc); err != nil {
		return err
	}
	_, err := p.lookup(loc)
	return err
}

func (p *fakePage) click(method, loc string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(method, loc); err != nil {
		return err
	}
	if method == "Click" {
		if err := p.clickErr[loc]; err != nil {
			return err
		}
	}
	if eff, ok := p.cells[loc]; ok {
		if field, ok := p.elements[eff.field]; ok {
			field.value = eff.value
		}
		return nil
	}
	_, err := p.lookup(loc)
	return err
}

func (p *fakePage) Click(_ context.Context, loc string) error { return p.click("Click", loc) }

func (p *fakePage) ScriptClick(_ context.Context, loc string) error {
	return p.click("ScriptClick", loc)
}

func (p *fakePage) Clear(_ context.Context, loc string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("Clear", loc); err != nil {
		return err
	}
	el, err := p.lookup(loc)
	if err != nil {
		return err
	}
	if !el.readonly {
		el.value = ""
	}
	return nil
}

func (p *fakePage) Type(_ context.Context, loc, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("Type", loc); err != nil {
		return err
	}
	el, err := p.lookup(loc)
	if err != nil {
		return err
	}
	if !el.readonly {
		el.value += text
	}
	return nil
}

func (p *fakePage) PressKeys(_ context.Context, loc string, _ ...Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("PressKeys", loc); err != nil {
		return err
	}
	_, err := p.lookup(loc)
	return err
}

func (p *fakePage) Value(_ context.Context, loc string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("Value", loc); err != nil {
		return "", err
	}
	el, err := p.lookup(loc)
	if err != nil {
		return "", err
	}
	return el.value, nil
}

func (p *fakePage) ResetValue(_ context.Context, loc string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ResetValue", loc); err != nil {
		return err
	}
	el, err := p.lookup(loc)
	if err != nil {
		return err
	}
	if !el.scriptBlocked {
		el.value = ""
	}
	return nil
}

func (p *fakePage) InjectValue(_ context.Context, loc, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("InjectValue", loc); err != nil {
		return err
	}
	el, err := p.lookup(loc)
	if err != nil {
		return err
	}
	if !el.scriptBlocked {
		el.value = value
	}
	return nil
}

func (p *fakePage) DispatchCommit(_ context.Context, loc string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DispatchCommit", loc); err != nil {
		return err
	}
	_, err := p.lookup(loc)
	return err
}

func (p *fakePage) FindVisible(_ context.Context, loc string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("FindVisible", loc); err != nil {
		return nil, err
	}
	return p.visible[loc], nil
}
