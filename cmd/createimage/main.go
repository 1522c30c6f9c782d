// Command createimage assembles a bootable disk image from a 512-byte
// bootblock and one or more kernel ELF files, per spec section 4.6.
// It is grounded on original_source/boot/createimage.c's segment-
// concatenation approach, rewritten against Go's debug/elf instead of
// hand-parsing Elf32_Ehdr/Elf32_Phdr records, and fixes that source's
// bug of writing the sector count as a 4-byte int at OS_SIZE_LOC (which
// clobbers the two bytes after it) with the 2-byte little-endian write
// the bootblock's AH=02h read actually expects.
package main

import (
	"debug/elf"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"
)

const (
	sectorSize = 512
	osSizeLoc  = 2
	imageFile  = "image"
)

func main() {
	extended := flag.Bool("extended", false, "print per-segment debug info")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Println("usage: createimage [--extended] <bootblock> <kernel-elf> [more-elfs...]")
		return
	}

	bootName, kernelNames := args[0], args[1:]

	boot, err := os.ReadFile(bootName)
	if err != nil {
		fmt.Printf("could not read bootblock %s: %v\n", bootName, err)
		return
	}
	if len(boot) != sectorSize {
		fmt.Printf("bootblock %s must be exactly %d bytes, got %d\n", bootName, sectorSize, len(boot))
		return
	}

	var kernel []byte
	for _, name := range kernelNames {
		segments, err := extractSegments(name, *extended)
		if err != nil {
			fmt.Printf("could not parse %s: %v\n", name, err)
			return
		}
		kernel = append(kernel, segments...)
	}
	if len(kernel) == 0 {
		fmt.Println("no kernel segments found")
		return
	}

	out, err := os.Create(imageFile)
	if err != nil {
		fmt.Printf("failed to create %s: %v\n", imageFile, err)
		return
	}
	defer out.Close()

	if _, err := out.Write(boot); err != nil {
		fmt.Printf("failed writing bootblock: %v\n", err)
		return
	}
	if _, err := out.Write(kernel); err != nil {
		fmt.Printf("failed writing kernel: %v\n", err)
		return
	}

	if rem := len(kernel) % sectorSize; rem != 0 {
		pad := make([]byte, sectorSize-rem)
		if *extended {
			fmt.Printf("padding kernel with %d bytes\n", len(pad))
		}
		if _, err := out.Write(pad); err != nil {
			fmt.Printf("failed writing padding: %v\n", err)
			return
		}
	}

	osSize := (len(kernel) + sectorSize - 1) / sectorSize
	if *extended {
		fmt.Printf("os_size: %d sectors\n", osSize)
	}
	if osSize > 0xFFFF {
		fmt.Printf("kernel too large: %d sectors does not fit in 16 bits\n", osSize)
		return
	}

	var sizeField [2]byte
	binary.LittleEndian.PutUint16(sizeField[:], uint16(osSize))
	if _, err := out.Seek(osSizeLoc, io.SeekStart); err != nil {
		fmt.Printf("failed to seek to os_size field: %v\n", err)
		return
	}
	if _, err := out.Write(sizeField[:]); err != nil {
		fmt.Printf("failed writing os_size field: %v\n", err)
	}
}

// extractSegments concatenates every PT_LOAD program header's contents:
// Filesz bytes read from the file at Off, zero-padded out to Memsz for
// any trailing .bss within the segment.
func extractSegments(name string, extended bool) ([]byte, error) {
	f, err := elf.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []byte
	segIdx := 0
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if extended {
			fmt.Printf("  segment: %d  memsz: %d  filesz: %d  offset: %#x  vaddr: %#x\n",
				segIdx, prog.Memsz, prog.Filesz, prog.Off, prog.Vaddr)
		}
		segIdx++

		data := make([]byte, prog.Memsz)
		r := prog.Open()
		if _, err := io.ReadFull(r, data[:prog.Filesz]); err != nil && err != io.EOF {
			return nil, fmt.Errorf("segment at %#x: %w", prog.Off, err)
		}
		out = append(out, data...)
	}
	return out, nil
}
