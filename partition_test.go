package cocoyolo

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestPartitionFromFileName(t *testing.T) {
	tests := []struct {
		name string
		want Partition
	}{
		{"instances_Train.json", Train},
		{"instances_Validation.json", Validation},
		{"instances_test.json", Test},
		{"/data/annotations/my_set_TRAIN.json", Train},
		{"train.json", Train},
	}
	for _, tt := range tests {
		got, err := PartitionFromFileName(tt.name)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPartitionFromFileNameUnknown(t *testing.T) {
	for _, name := range []string{"instances_val.json", "instances.json", "instances_train_v2.json"} {
		_, err := PartitionFromFileName(name)
		var pErr *PartitionError
		if !errors.As(err, &pErr) {
			t.Errorf("%s: expected a PartitionError, got %v", name, err)
		}
	}
}

func TestAutosplitAssignerFraction(t *testing.T) {
	const n = 100000
	a := NewAutosplitAssigner(25, 42)
	val := 0
	for i := 0; i < n; i++ {
		p, err := a.Assign("instances.json")
		if err != nil {
			t.Fatal(err)
		}
		switch p {
		case Validation:
			val++
		case Train:
		default:
			t.Fatalf("unexpected partition %v", p)
		}
	}

	// Five standard deviations of the binomial distribution.
	frac := float64(val) / n
	if bound := 5 * math.Sqrt(0.25*0.75/n); math.Abs(frac-0.25) > bound {
		t.Errorf("validation fraction %.4f is not within %.4f of 0.25", frac, bound)
	}
}

func TestAutosplitAssignerBounds(t *testing.T) {
	for _, tt := range []struct {
		percentVal float64
		want       Partition
	}{{0, Train}, {100, Validation}} {
		a := NewAutosplitAssigner(tt.percentVal, 1)
		for i := 0; i < 1000; i++ {
			if p, _ := a.Assign(""); p != tt.want {
				t.Fatalf("percent %v: got %v, want %v", tt.percentVal, p, tt.want)
			}
		}
	}
}

func TestAutosplitAssignerSeed(t *testing.T) {
	a, b := NewAutosplitAssigner(50, 7), NewAutosplitAssigner(50, 7)
	for i := 0; i < 100; i++ {
		pa, _ := a.Assign("")
		pb, _ := b.Assign("")
		if pa != pb {
			t.Fatalf("draw %d differs for the same seed", i)
		}
	}
}
