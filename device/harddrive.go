package device

import (
	"errors"
	"io"
	"io/fs"
	"maps"
	"regexp"
	"slices"
	"strings"
)

const (
	PARTITION_EXT = ".part" // File extension of a marshaled partition.
)

var partitionName = regexp.MustCompile(`^[A-Za-z0-9_-]+\.part$`)

// HardDrive is a set of named partitions, one of which may be loaded
// into memory at a time.
type HardDrive struct {
	Verbose    bool
	Mmu        Allocator
	Partitions map[string][]byte
	Reservation
}

// NewHardDrive creates a hard drive with no partitions.
func NewHardDrive(mmu Allocator) *HardDrive {
	return &HardDrive{
		Mmu:        mmu,
		Partitions: make(map[string][]byte),
	}
}

// Names returns the sorted partition names.
func (hd *HardDrive) Names() []string {
	return slices.Sorted(maps.Keys(hd.Partitions))
}

// Unmarshal loads every NAME.part file at the root of filesys as a
// partition, replacing partitions of the same name.
func (hd *HardDrive) Unmarshal(filesys fs.FS) (err error) {
	entries, err := fs.ReadDir(filesys, ".")
	if err != nil {
		return
	}

	if hd.Partitions == nil {
		hd.Partitions = make(map[string][]byte)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !partitionName.MatchString(name) {
			continue
		}

		var data []byte
		data, err = fs.ReadFile(filesys, name)
		if err != nil {
			return
		}

		hd.Partitions[strings.TrimSuffix(name, PARTITION_EXT)] = data
	}

	return
}

// Marshal writes every partition to filesys as NAME.part.
func (hd *HardDrive) Marshal(filesys CreateFS) (err error) {
	for _, name := range hd.Names() {
		var file io.WriteCloser
		file, err = filesys.Create(name + PARTITION_EXT)
		if err != nil {
			return
		}

		_, err = file.Write(hd.Partitions[name])
		if err != nil {
			file.Close()
			return
		}

		err = file.Close()
		if err != nil {
			return
		}
	}

	return
}

// Load reserves memory for a partition and copies it in.
func (hd *HardDrive) Load(partition string) (start int, err error) {
	defer func() {
		if err != nil {
			err = &ErrDevice{Device: "harddrive", Err: err}
		}
	}()

	data, ok := hd.Partitions[partition]
	if !ok {
		err = ErrPartition
		return
	}

	err = hd.Reservation.load(hd.Mmu, partition, len(data), hd.Verbose)
	if err != nil {
		return
	}

	start = hd.Start

	err = hd.Mmu.Write(start, data)
	if err != nil {
		err = errors.Join(err, hd.Reservation.unload(hd.Mmu, hd.Verbose))
		start = 0
		return
	}

	return
}

// Unload releases the loaded partition's memory.
func (hd *HardDrive) Unload() (err error) {
	err = hd.Reservation.unload(hd.Mmu, hd.Verbose)
	if err != nil {
		err = &ErrDevice{Device: "harddrive", Err: err}
	}
	return
}
