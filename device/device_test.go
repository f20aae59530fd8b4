package device

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/simco/mmu"
)

func TestState(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("empty", STATE_EMPTY.String())
	assert.Equal("loaded", STATE_LOADED.String())
	assert.Equal("State(7)", State(7).String())
}

func TestFloppy(t *testing.T) {
	assert := assert.New(t)

	mem := mmu.NewMmu(64)
	fd := NewFloppy(mem)
	assert.False(fd.Loaded())

	start, err := fd.Load("prog", 10)
	assert.NoError(err)
	assert.Equal(0, start)
	assert.True(fd.Loaded())
	assert.Equal(Reservation{State: STATE_LOADED, Name: "prog", Start: 0, Size: 10}, fd.Reservation)
	assert.Equal(54, mem.Free())

	// A second load is refused and reserves nothing.
	_, err = fd.Load("other", 4)
	assert.ErrorIs(err, ErrLoaded)
	assert.Equal(54, mem.Free())
	assert.Equal("prog", fd.Name)

	assert.NoError(fd.Unload())
	assert.False(fd.Loaded())
	assert.Equal(64, mem.Free())

	err = fd.Unload()
	assert.ErrorIs(err, ErrEmpty)
	assert.Contains(err.Error(), "floppy")
	assert.Equal(64, mem.Free())
}

func TestFloppy_LoadFailure(t *testing.T) {
	assert := assert.New(t)

	mem := mmu.NewMmu(8)
	fd := NewFloppy(mem)

	_, err := fd.Load("big", 9)
	assert.ErrorIs(err, mmu.ErrOutOfMemory)
	assert.False(fd.Loaded())
	assert.Equal(8, mem.Free())
}

func TestFloppy_UnloadExactRange(t *testing.T) {
	assert := assert.New(t)

	mem := mmu.NewMmu(32)
	_, err := mem.Allocate(3)
	assert.NoError(err)

	fd := NewFloppy(mem)
	start, err := fd.Load("a", 5)
	assert.NoError(err)
	assert.Equal(3, start)

	tail, err := mem.Allocate(4)
	assert.NoError(err)
	assert.Equal(8, tail)

	assert.NoError(fd.Unload())
	assert.False(mem.Allocated(3))
	assert.False(mem.Allocated(7))
	assert.True(mem.Allocated(2))
	assert.True(mem.Allocated(8))
	assert.Equal(32-3-4, mem.Free())
}

func TestFloppy_LoadImage(t *testing.T) {
	assert := assert.New(t)

	mem := mmu.NewMmu(16)
	fd := NewFloppy(mem)

	start, err := fd.LoadImage("image", bytes.NewReader([]byte{9, 8, 7}))
	assert.NoError(err)
	assert.Equal(3, fd.Size)

	data := make([]byte, 3)
	assert.NoError(mem.Read(start, data))
	assert.Equal([]byte{9, 8, 7}, data)

	assert.NoError(fd.Unload())
	assert.Equal(16, mem.Free())

	_, err = fd.LoadImage("broken", io.MultiReader(bytes.NewReader([]byte{1}), &failReader{}))
	assert.ErrorIs(err, io.ErrUnexpectedEOF)
	assert.False(fd.Loaded())
}

type failReader struct{}

func (*failReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

var (
	errWrite   = errors.New("write failed")
	errRelease = errors.New("release failed")
)

// brokenMmu fails every write, and every release when release is set.
type brokenMmu struct {
	*mmu.Mmu
	release bool
}

func (bm *brokenMmu) Write(start int, data []byte) error {
	return errWrite
}

func (bm *brokenMmu) Deallocate(start, size int) error {
	if bm.release {
		return errRelease
	}
	return bm.Mmu.Deallocate(start, size)
}

func TestDevice_CleanupErrors(t *testing.T) {
	assert := assert.New(t)

	mem := &brokenMmu{Mmu: mmu.NewMmu(16)}

	fd := NewFloppy(mem)
	_, err := fd.LoadImage("image", bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(err, errWrite)
	assert.NotErrorIs(err, errRelease)
	assert.False(fd.Loaded())
	assert.Equal(16, mem.Free())

	hd := NewHardDrive(mem)
	hd.Partitions["boot"] = []byte{1, 2, 3}
	_, err = hd.Load("boot")
	assert.ErrorIs(err, errWrite)
	assert.False(hd.Loaded())

	// A failed release is reported along with the failed write.
	mem.release = true

	_, err = fd.LoadImage("image", bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(err, errWrite)
	assert.ErrorIs(err, errRelease)

	_, err = hd.Load("boot")
	assert.ErrorIs(err, errWrite)
	assert.ErrorIs(err, errRelease)
}

func TestHardDrive(t *testing.T) {
	assert := assert.New(t)

	filesys := fstest.MapFS{
		"boot.part":      &fstest.MapFile{Data: []byte("add r1 r2 r3\n")},
		"data.part":      &fstest.MapFile{Data: []byte{1, 2, 3, 4}},
		"notes.txt":      &fstest.MapFile{Data: []byte("ignored")},
		"sub/other.part": &fstest.MapFile{Data: []byte("ignored")},
	}

	mem := mmu.NewMmu(64)
	hd := NewHardDrive(mem)
	assert.NoError(hd.Unmarshal(filesys))
	assert.Equal([]string{"boot", "data"}, hd.Names())

	start, err := hd.Load("data")
	assert.NoError(err)
	assert.Equal(0, start)
	assert.Equal(60, mem.Free())

	data := make([]byte, 4)
	assert.NoError(mem.Read(start, data))
	assert.Equal([]byte{1, 2, 3, 4}, data)

	_, err = hd.Load("boot")
	assert.ErrorIs(err, ErrLoaded)

	assert.NoError(hd.Unload())
	assert.ErrorIs(hd.Unload(), ErrEmpty)
	assert.Equal(64, mem.Free())

	_, err = hd.Load("missing")
	assert.ErrorIs(err, ErrPartition)
	assert.False(hd.Loaded())
}

// memFS is a CreateFS collecting files in memory.
type memFS map[string]*bytes.Buffer

type memFile struct {
	*bytes.Buffer
}

func (memFile) Close() error { return nil }

func (mfs memFS) Create(name string) (io.WriteCloser, error) {
	buff := &bytes.Buffer{}
	mfs[name] = buff
	return memFile{buff}, nil
}

func TestHardDrive_Marshal(t *testing.T) {
	assert := assert.New(t)

	hd := NewHardDrive(mmu.NewMmu(8))
	hd.Partitions["one"] = []byte{1}
	hd.Partitions["two"] = []byte{2, 2}

	out := memFS{}
	assert.NoError(hd.Marshal(out))
	assert.Equal(2, len(out))
	assert.Equal([]byte{1}, out["one.part"].Bytes())
	assert.Equal([]byte{2, 2}, out["two.part"].Bytes())

	// And back again.
	filesys := fstest.MapFS{}
	for name, buff := range out {
		filesys[name] = &fstest.MapFile{Data: buff.Bytes()}
	}
	hd2 := NewHardDrive(mmu.NewMmu(8))
	assert.NoError(hd2.Unmarshal(filesys))
	assert.Equal(hd.Partitions, hd2.Partitions)
}

func TestHardDrive_DirFS(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()

	hd := NewHardDrive(mmu.NewMmu(8))
	hd.Partitions["disk"] = []byte("halt\n")
	assert.NoError(hd.Marshal(DirFS(dir)))

	hd2 := &HardDrive{}
	assert.NoError(hd2.Unmarshal(os.DirFS(dir)))
	assert.Equal([]byte("halt\n"), hd2.Partitions["disk"])
}

func TestNetwork(t *testing.T) {
	assert := assert.New(t)

	mem := mmu.NewMmu(16)
	_, err := mem.Allocate(2)
	assert.NoError(err)

	a := NewNetwork("a", mem)
	b := NewNetwork("b", mem)

	err = a.Send([]byte("hi"), b)
	assert.ErrorIs(err, ErrNotConnected)

	a.Connect(b)
	a.Connect(b)
	assert.True(a.Connected(b))
	assert.False(b.Connected(a))

	assert.NoError(a.Send([]byte("hello"), b))
	assert.Equal(14, mem.Free())
	assert.False(mem.Allocated(2))

	data, ok := b.Receive()
	assert.True(ok)
	assert.Equal([]byte("hello"), data)
	_, ok = b.Receive()
	assert.False(ok)

	// Too large to stage.
	err = a.Send(make([]byte, 15), b)
	assert.ErrorIs(err, mmu.ErrOutOfMemory)
	assert.Equal(0, len(b.Inbox))
	assert.Equal(14, mem.Free())

	a.Disconnect(b)
	assert.False(a.Connected(b))
	assert.ErrorIs(a.Send([]byte("x"), b), ErrNotConnected)
}
