package blockdev

import (
	"bytes"
	"testing"
)

func TestWriteThenReadSectorRoundTrip(t *testing.T) {
	d := NewMemDisk(4)
	var in [SectorSize]byte
	for i := range in {
		in[i] = byte(i)
	}
	if err := d.WriteSector(2, in[:]); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	var out [SectorSize]byte
	if err := d.ReadSector(2, out[:]); err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(in[:], out[:]) {
		t.Fatalf("round trip mismatch")
	}
}

func TestReadSectorGrowsDiskLazily(t *testing.T) {
	d := NewMemDisk(1)
	var buf [SectorSize]byte
	if err := d.ReadSector(10, buf[:]); err != nil {
		t.Fatalf("ReadSector on unwritten sector: %v", err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected zeroed sector beyond initial size")
		}
	}
	if d.NumSectors() < 11 {
		t.Fatalf("expected disk to grow to cover sector 10")
	}
}

func TestModifyPreservesRestOfSector(t *testing.T) {
	d := NewMemDisk(1)
	var full [SectorSize]byte
	for i := range full {
		full[i] = 0xAA
	}
	d.WriteSector(0, full[:])

	patch := []byte{1, 2, 3, 4}
	if err := d.Modify(0, 10, patch, len(patch)); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	var out [SectorSize]byte
	d.ReadSector(0, out[:])
	if !bytes.Equal(out[10:14], patch) {
		t.Fatalf("expected patched region to match, got %v", out[10:14])
	}
	if out[9] != 0xAA || out[14] != 0xAA {
		t.Fatalf("expected bytes outside patch to be untouched")
	}
}

func TestReadPartExtractsSubrange(t *testing.T) {
	d := NewMemDisk(1)
	var full [SectorSize]byte
	for i := range full {
		full[i] = byte(i)
	}
	d.WriteSector(0, full[:])

	got := make([]byte, 5)
	if err := d.ReadPart(0, 100, 5, got); err != nil {
		t.Fatalf("ReadPart: %v", err)
	}
	if !bytes.Equal(got, full[100:105]) {
		t.Fatalf("ReadPart mismatch: got %v want %v", got, full[100:105])
	}
}

func TestReadPartRejectsOutOfRange(t *testing.T) {
	d := NewMemDisk(1)
	buf := make([]byte, 10)
	if err := d.ReadPart(0, SectorSize-5, 10, buf); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestWriteSectorRejectsWrongBufferSize(t *testing.T) {
	d := NewMemDisk(1)
	if err := d.WriteSector(0, make([]byte, 10)); err != ErrBufferSize {
		t.Fatalf("expected ErrBufferSize, got %v", err)
	}
}
