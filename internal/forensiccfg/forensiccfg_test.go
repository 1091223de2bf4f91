package forensiccfg

import "testing"

func TestValidate_IndexArgs_Valid(t *testing.T) {
	args := IndexArgs{Source: "/mnt/image", Workers: 4, BlockSize: 4096}
	if err := Validate("IndexArgs", args); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_IndexArgs_MissingSource(t *testing.T) {
	args := IndexArgs{Workers: 4, BlockSize: 4096}
	if err := Validate("IndexArgs", args); err == nil {
		t.Fatalf("Validate: expected error for missing source")
	}
}

func TestValidate_IndexArgs_BlockSizeBelowFloor(t *testing.T) {
	args := IndexArgs{Source: "/mnt/image", Workers: 4, BlockSize: 100}
	if err := Validate("IndexArgs", args); err == nil {
		t.Fatalf("Validate: expected error for block size below 512")
	}
}

func TestValidate_CarveOptions_Valid(t *testing.T) {
	opts := CarveOptions{Source: "/mnt/image.raw", OutputDir: "/out", MinSize: 0, Workers: 2}
	if err := Validate("CarveOptions", opts); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_DedupOptions_InvalidStrategy(t *testing.T) {
	opts := DedupOptions{Strategy: "random"}
	if err := Validate("DedupOptions", opts); err == nil {
		t.Fatalf("Validate: expected error for unknown strategy")
	}
}

func TestValidate_DedupOptions_ValidStrategy(t *testing.T) {
	opts := DedupOptions{Strategy: "cleanest", FuzzyThreshold: 85}
	if err := Validate("DedupOptions", opts); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_ExportOptions_MissingDest(t *testing.T) {
	opts := ExportOptions{}
	if err := Validate("ExportOptions", opts); err == nil {
		t.Fatalf("Validate: expected error for missing dest")
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	if err := Validate("NotAKind", struct{}{}); err == nil {
		t.Fatalf("Validate: expected error for unknown schema kind")
	}
}
