package raster

import "testing"

func TestNewWithConfigPresizesBuffers(t *testing.T) {
	r := NewWithConfig(4, 4, Config{InitialMarkCapacity: 8, InitialFragCapacity: 32})
	if len(r.markPos) != 8 || len(r.markInfo) != 8 {
		t.Errorf("markPos/markInfo len = %d/%d, want 8/8", len(r.markPos), len(r.markInfo))
	}
	if len(r.fragPos) != 32 || len(r.fragInfo) != 32 {
		t.Errorf("fragPos/fragInfo len = %d/%d, want 32/32", len(r.fragPos), len(r.fragInfo))
	}
}

func TestNewWithConfigZeroValueUsesDefaults(t *testing.T) {
	r := NewWithConfig(4, 4, Config{})
	if len(r.markPos) != defaultMarkCapacity {
		t.Errorf("markPos len = %d, want default %d", len(r.markPos), defaultMarkCapacity)
	}
	if len(r.fragPos) != defaultFragCapacity {
		t.Errorf("fragPos len = %d, want default %d", len(r.fragPos), defaultFragCapacity)
	}
}
