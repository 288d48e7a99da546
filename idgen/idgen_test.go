package idgen

import (
	"errors"
	"testing"

	"github.com/wyfcoding/geonear/config"
)

func TestGenerators_Unique(t *testing.T) {
	for _, typ := range []string{"snowflake", "sonyflake"} {
		t.Run(typ, func(t *testing.T) {
			g, err := NewGenerator(config.IDGenConfig{Type: typ, MachineID: 7})
			if err != nil {
				t.Fatal(err)
			}
			seen := make(map[int64]struct{}, 1000)
			for range 1000 {
				id := g.Generate()
				if id <= 0 {
					t.Fatalf("Generate() = %d, want positive", id)
				}
				if _, dup := seen[id]; dup {
					t.Fatalf("duplicate id %d", id)
				}
				seen[id] = struct{}{}
			}
		})
	}
}

func TestNewGenerator_Errors(t *testing.T) {
	if _, err := NewGenerator(config.IDGenConfig{Type: "uuid"}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("error = %v, want ErrUnsupportedType", err)
	}
	if _, err := NewGenerator(config.IDGenConfig{Type: "sonyflake", MachineID: 70000}); !errors.Is(err, ErrInvalidMachineID) {
		t.Errorf("error = %v, want ErrInvalidMachineID", err)
	}
	if _, err := NewGenerator(config.IDGenConfig{Type: "sonyflake", StartTime: "yesterday"}); !errors.Is(err, ErrParseTime) {
		t.Errorf("error = %v, want ErrParseTime", err)
	}
}

func TestGenIDString(t *testing.T) {
	a, b := GenIDString(), GenIDString()
	if a == "" || a == b {
		t.Errorf("GenIDString() = %q, %q; want distinct non-empty ids", a, b)
	}
}
