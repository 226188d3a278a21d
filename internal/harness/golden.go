package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/abeflag/internal/ir"
)

// RunWithGolden runs sc and compares the final audit certificate, as
// canonical JSON, with testdata/golden/<name>.golden.
//
// To regenerate golden files:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, sc.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares result's final certificate with the golden file
// for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := ir.MarshalCanonical(result.Last().Certificate)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
