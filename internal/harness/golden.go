package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the statements of a result in a stable text form, one
// section per dialect:
//
//	-- vfp --
//	SELECT ...
//	params: minFreight
//	-- sqlite --
//	error: UNSUPPORTED_FUNCTION
//
// Fingerprints and messages are left out so that wording changes do not
// churn golden files.
func Snapshot(r *Result) []byte {
	var buf strings.Builder
	for _, s := range r.Statements {
		fmt.Fprintf(&buf, "-- %s --\n", s.Dialect)
		if s.Error != "" {
			fmt.Fprintf(&buf, "error: %s\n", s.Error)
			continue
		}
		buf.WriteString(s.Text)
		buf.WriteByte('\n')
		if len(s.Params) > 0 {
			fmt.Fprintf(&buf, "params: %s\n", strings.Join(s.Params, " "))
		}
	}
	return []byte(buf.String())
}

// RunWithGolden runs a document and compares its statements against
// testdata/golden/{doc.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, r *Runner, doc *Document) (*Result, error) {
	t.Helper()

	result, err := r.Run(context.Background(), doc)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, doc.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
