package scanplan

import (
	"testing"

	"github.com/forensics/diskrecover/internal/signature"
)

func TestBuild_FirstByteIndexAndOffsetSigs(t *testing.T) {
	sigs := []*signature.Signature{
		{Name: "jpeg", Header: []byte{0xFF, 0xD8, 0xFF}, HeaderOffset: 0},
		{Name: "mp4", Header: []byte("ftyp"), HeaderOffset: 4},
	}
	plan := Build(sigs, 1<<20, 4)

	if len(plan.FirstByteIndex[0xFF]) != 1 || plan.FirstByteIndex[0xFF][0] != 0 {
		t.Fatalf("first-byte index for 0xFF = %v, want [0]", plan.FirstByteIndex[0xFF])
	}
	if len(plan.OffsetSigs) != 1 || plan.OffsetSigs[0].Index != 1 || plan.OffsetSigs[0].Offset != 4 {
		t.Fatalf("offset sigs = %v, want [{1 4}]", plan.OffsetSigs)
	}
}

func TestBuild_ChunksCoverWholeImageWithOverlap(t *testing.T) {
	sigs := []*signature.Signature{
		{Name: "jpeg", Header: []byte{0xFF, 0xD8, 0xFF}, HeaderOffset: 0},
	}
	const imageSize = 10000
	plan := Build(sigs, imageSize, 4)

	if len(plan.Chunks) != 4 {
		t.Fatalf("len(Chunks) = %d, want 4", len(plan.Chunks))
	}
	if plan.Chunks[0].Start != 0 {
		t.Fatalf("first chunk start = %d, want 0", plan.Chunks[0].Start)
	}
	last := plan.Chunks[len(plan.Chunks)-1]
	if last.End != imageSize {
		t.Fatalf("last chunk end = %d, want %d", last.End, imageSize)
	}
	for i := 0; i < len(plan.Chunks)-1; i++ {
		if plan.Chunks[i].End <= plan.Chunks[i+1].Start {
			t.Fatalf("chunk %d does not overlap chunk %d: %+v / %+v", i, i+1, plan.Chunks[i], plan.Chunks[i+1])
		}
	}
}

func TestBuild_OverlapFloorIs512(t *testing.T) {
	sigs := []*signature.Signature{
		{Name: "jpeg", Header: []byte{0xFF, 0xD8, 0xFF}, HeaderOffset: 0},
	}
	plan := Build(sigs, 1<<20, 2)
	if plan.Overlap < 512 {
		t.Fatalf("Overlap = %d, want >= 512", plan.Overlap)
	}
}

func TestBuild_ZeroImageSizeProducesNoChunks(t *testing.T) {
	plan := Build(nil, 0, 4)
	if len(plan.Chunks) != 0 {
		t.Fatalf("len(Chunks) = %d, want 0 for empty image", len(plan.Chunks))
	}
}

func TestBuild_WorkerCountClampedToAtLeastOne(t *testing.T) {
	sigs := []*signature.Signature{
		{Name: "jpeg", Header: []byte{0xFF, 0xD8, 0xFF}, HeaderOffset: 0},
	}
	plan := Build(sigs, 1000, 0)
	if len(plan.Chunks) != 1 {
		t.Fatalf("len(Chunks) = %d, want 1 with workerCount clamped up from 0", len(plan.Chunks))
	}
}
