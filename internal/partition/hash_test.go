package partition

import "testing"

func TestIndexOfDeterministic(t *testing.T) {
	keys := []string{"", "1", "42", "user-9000", "\x00weird\xff"}
	for _, k := range keys {
		first := IndexOf(k, 7)
		for i := 0; i < 10; i++ {
			if got := IndexOf(k, 7); got != first {
				t.Fatalf("IndexOf(%q) not deterministic: %d vs %d", k, got, first)
			}
		}
	}
}

func TestIndexOfInRange(t *testing.T) {
	for count := 1; count <= MaxPartitions; count++ {
		for i := 0; i < 1000; i++ {
			k := string(rune('a' + i%26))
			idx := IndexOf(k, count)
			if idx < 0 || idx >= count {
				t.Fatalf("IndexOf(%q, %d) = %d out of range", k, count, idx)
			}
		}
	}
}

func TestIndexOfDistribution(t *testing.T) {
	// With 10k distinct keys over 10 partitions each bucket should land
	// reasonably close to 1000.
	const count = 10
	buckets := make([]int, count)
	for i := 0; i < 10000; i++ {
		buckets[IndexOf(string(rune(i))+"-key", count)]++
	}
	for idx, n := range buckets {
		if n < 500 || n > 1500 {
			t.Errorf("partition %d holds %d of 10000 keys, expected near-uniform", idx, n)
		}
	}
}

func TestCountFor(t *testing.T) {
	tests := []struct {
		expectedRows  int
		partitionSize int
		want          int
	}{
		{10000, 1000, 10},
		{100, 25, 4},
		{99, 25, 4},
		{1, 1000, 1},
		{1000000, 1000, MaxPartitions}, // ceiling
		{0, 1000, 1},
		{1000, 0, 1},
	}
	for _, tt := range tests {
		if got := CountFor(tt.expectedRows, tt.partitionSize); got != tt.want {
			t.Errorf("CountFor(%d, %d) = %d, want %d", tt.expectedRows, tt.partitionSize, got, tt.want)
		}
	}
}
