package volume

import "testing"

func TestVolumePath_NamespacesByPartition(t *testing.T) {
	a := volumePath(1, "/docs/file.txt")
	b := volumePath(2, "/docs/file.txt")
	if a == b {
		t.Fatalf("volumePath should differ across partitions: %q == %q", a, b)
	}
	if a != "part1:/docs/file.txt" {
		t.Fatalf("volumePath(1, ...) = %q, want part1:/docs/file.txt", a)
	}
}

func TestClose_NilDiskIsNoop(t *testing.T) {
	v := &Volume{}
	if err := v.Close(); err != nil {
		t.Fatalf("Close() on a Volume with no opened disk = %v, want nil", err)
	}
}
