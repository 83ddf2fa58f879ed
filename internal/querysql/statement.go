package querysql

import (
	"fmt"

	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/param"
)

// Statement is rendered SQL text plus its parameter slots. The text never
// changes; Args reads the slots' live values each time it is called, so
// one statement serves every execution of a query.
type Statement struct {
	Text    string
	Dialect string

	// Slots lists the parameter behind each placeholder, in text order.
	// A parameter used twice fills two slots.
	Slots []param.Parameter

	dialect *Dialect
}

// Args reads the current value of every slot and converts it for the
// driver.
func (s *Statement) Args() ([]any, error) {
	args := make([]any, len(s.Slots))
	for i, p := range s.Slots {
		v, err := p.Value()
		if err != nil {
			return nil, err
		}
		if s.dialect == nil {
			args[i], err = ir.Native(v)
		} else {
			args[i], err = s.dialect.Bind(v)
		}
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
	}
	return args, nil
}

// ParamNames returns the slot names in text order.
func (s *Statement) ParamNames() []string {
	names := make([]string, len(s.Slots))
	for i, p := range s.Slots {
		names[i] = p.Name
	}
	return names
}

// Fingerprint identifies the statement text within its dialect.
func (s *Statement) Fingerprint() string {
	return ir.StatementFingerprint(s.Dialect, s.Text)
}

// String returns the statement text.
func (s *Statement) String() string {
	return s.Text
}
