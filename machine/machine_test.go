package machine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/simco/config"
	"github.com/ezrec/simco/cpu"
	"github.com/ezrec/simco/device"
	"github.com/ezrec/simco/gpu"
	"github.com/ezrec/simco/mmu"
)

var countdown = []string{
	".set r1 5",
	".set r2 1",
	".set r4 3",
	"loop: jz done r1",
	"add r3 r4 r3",
	"sub r1 r2 r1",
	"jmp loop",
	"done: halt",
}

func assemble(t *testing.T, program ...string) (prog *cpu.Program) {
	asm := &cpu.Assembler{}
	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	if err != nil {
		t.Fatal(err)
	}

	return
}

func newMachine(t *testing.T) (mach *Machine) {
	mach, err := NewMachine(config.Default())
	if err != nil {
		t.Fatal(err)
	}

	return
}

func TestMachine(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)
	assert.False(mach.Verbose)
	assert.Equal(256, len(mach.Cpu.Memory))
	assert.Equal(1024, mach.Mmu.Capacity())
	assert.Equal(32, mach.Gpu.Width)
	assert.Equal(16, mach.Gpu.Height)

	// Scratch word is reserved.
	assert.True(mach.Mmu.Allocated(SCRATCH_ADDR))
	assert.Equal(1023, mach.Mmu.Free())

	defines := map[string]string{}
	for key, value := range mach.Defines() {
		defines[key] = value
	}
	assert.Equal("0", defines["SCRATCH_ADDR"])
	assert.Equal("256", defines["CPU_MEMORY"])
	assert.Equal("1024", defines["MMU_SIZE"])

	cfg := config.Default()
	cfg.Mmu.Size = 0
	_, err := NewMachine(cfg)
	assert.ErrorIs(err, config.ErrConfig)
}

func TestMachineExec(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)
	mach.Cpu.Register[1] = 5
	mach.Cpu.Register[2] = 7

	word := cpu.MakeCode(cpu.OP_ADD, 1, 2, 3)
	_, jump, err := mach.Exec(word)
	assert.NoError(err)
	assert.False(jump)
	assert.Equal(int32(12), mach.Cpu.Register[3])
	assert.Equal(word, mach.Cpu.Memory[SCRATCH_ADDR])

	target, jump, err := mach.Exec(cpu.MakeCodeJz(0, 4))
	assert.NoError(err)
	assert.True(jump)
	assert.Equal(0, target)
}

func TestMachineRun(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)
	prog := assemble(t, countdown...)

	err := mach.LoadProgram(prog)
	assert.NoError(err)
	assert.Equal(1, mach.Core.Start)
	assert.Equal(1+prog.Len(), mach.Core.End)
	assert.Equal(1023-prog.Len(), mach.Mmu.Free())
	assert.Equal(prog.Binary(), mach.Cpu.Memory[1:1+prog.Len()])

	err = mach.Run(context.Background())
	assert.NoError(err)
	assert.Equal(int32(0), mach.Cpu.Register[1])
	assert.Equal(int32(15), mach.Cpu.Register[3])
	assert.Equal(21, mach.Core.Ticks)
	assert.Equal(mach.Core.Start+4, mach.Core.Pc)

	// Halted programs stay halted.
	done, err := mach.Tick()
	assert.NoError(err)
	assert.True(done)

	err = mach.UnloadProgram()
	assert.NoError(err)
	assert.Equal(1023, mach.Mmu.Free())
	assert.Equal(cpu.CODE_HALT, mach.Cpu.Memory[1])

	err = mach.UnloadProgram()
	assert.ErrorIs(err, ErrNoProgram)

	_, err = mach.Tick()
	assert.ErrorIs(err, ErrNoProgram)
	assert.ErrorIs(mach.Run(context.Background()), ErrNoProgram)
}

func TestMachineTick(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)
	prog := assemble(t, "add r1 r2 r3", "jmp 0")
	mach.Cpu.Register[2] = 1

	assert.NoError(mach.LoadProgram(prog))

	for n := range 3 {
		done, err := mach.Tick()
		assert.NoError(err)
		assert.False(done)
		assert.Equal(int32(n+1), mach.Cpu.Register[3])
		assert.Equal(2, mach.Core.Pc)

		done, err = mach.Tick()
		assert.NoError(err)
		assert.False(done)
		assert.Equal(1, mach.Core.Pc)
	}
}

func TestMachineVerbose(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)
	assert.NoError(mach.LoadProgram(assemble(t, "add r1 r2 r3")))

	// Tracing only the CPU survives ticking a quiet core.
	mach.Cpu.Verbose = true
	_, err := mach.Tick()
	assert.NoError(err)
	assert.True(mach.Cpu.Verbose)
	assert.False(mach.Core.Verbose)

	mach.SetVerbose(true)
	assert.True(mach.Core.Verbose)
	assert.True(mach.Mmu.Verbose)
	mach.SetVerbose(false)
	assert.False(mach.Cpu.Verbose)
	assert.False(mach.Floppy.Verbose)

	assert.True(NewCore(&cpu.Cpu{Verbose: true}).Verbose)
}

func TestMachineLoadTwice(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)
	prog := assemble(t, "add r1 r2 r3")

	assert.NoError(mach.LoadProgram(prog))
	free := mach.Mmu.Free()

	err := mach.LoadProgram(prog)
	assert.ErrorIs(err, device.ErrLoaded)
	assert.Equal(free, mach.Mmu.Free())

	assert.NoError(mach.Close())
	assert.NoError(mach.Close())
	assert.Equal(1023, mach.Mmu.Free())
}

func TestMachineLoadTooLarge(t *testing.T) {
	assert := assert.New(t)

	cfg := config.Default()
	cfg.Cpu.Memory = 4
	cfg.Mmu.Size = 16

	mach, err := NewMachine(cfg)
	assert.NoError(err)

	prog := assemble(t, "add r1 r1 r1", "add r1 r1 r1", "add r1 r1 r1", "add r1 r1 r1")

	err = mach.LoadProgram(prog)
	assert.ErrorIs(err, cpu.ErrAddress)
	assert.False(mach.Floppy.Loaded())
	assert.Equal(15, mach.Mmu.Free())

	prog = assemble(t, "add r1 r1 r1", "add r1 r1 r1", "add r1 r1 r1")
	assert.NoError(mach.LoadProgram(prog))
}

var errRelease = errors.New("release failed")

type stuckMmu struct {
	*mmu.Mmu
}

func (sm *stuckMmu) Deallocate(start, size int) error {
	return errRelease
}

func TestMachineLoadCleanupError(t *testing.T) {
	assert := assert.New(t)

	cfg := config.Default()
	cfg.Cpu.Memory = 2

	mach, err := NewMachine(cfg)
	assert.NoError(err)
	mach.Floppy.Mmu = &stuckMmu{Mmu: mach.Mmu}

	err = mach.LoadProgram(assemble(t, "add r1 r1 r1", "add r1 r1 r1"))
	assert.ErrorIs(err, cpu.ErrAddress)
	assert.ErrorIs(err, errRelease)
}

func TestMachineErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		program []string
		ticks   int
		pc      int
		lineno  int
		err     error
	}){
		{"opcode", []string{"add r1 r1 r1", ".word 0x8123"}, 0, 2, 2, cpu.ErrInvalidOpcode},
		{"limit", []string{"loop: jmp loop"}, 10, 1, 1, ErrTickLimit},
		{"runaway", []string{"jmp 15"}, 0, 16, 0, nil},
	}

	for _, entry := range table {
		mach := newMachine(t)
		mach.Core.MaxTicks = entry.ticks

		assert.NoError(mach.LoadProgram(assemble(t, entry.program...)), entry.name)

		err := mach.Run(context.Background())
		if entry.err == nil {
			assert.NoError(err, entry.name)
			assert.Equal(entry.pc, mach.Core.Pc, entry.name)
			continue
		}

		assert.ErrorIs(err, entry.err, entry.name)

		var err_runtime *ErrRuntime
		if assert.ErrorAs(err, &err_runtime, entry.name) {
			assert.Equal(entry.pc, err_runtime.Pc, entry.name)
			assert.Equal(entry.lineno, err_runtime.LineNo, entry.name)
		}
	}
}

func TestMachineCancel(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)
	mach.Core.MaxTicks = 0
	assert.NoError(mach.LoadProgram(assemble(t, "loop: jmp loop")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mach.Run(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(0, mach.Core.Ticks)
}

func TestMachineBoot(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)

	source := strings.Join(append([]string{".set r7 $(CPU_MEMORY)"}, countdown...), "\n")
	filesys := fstest.MapFS{
		"count.part": &fstest.MapFile{Data: []byte(source)},
		"README":     &fstest.MapFile{Data: []byte("not a partition")},
	}
	assert.NoError(mach.HardDrive.Unmarshal(filesys))
	assert.Equal([]string{"count"}, mach.HardDrive.Names())

	err := mach.Boot("missing")
	assert.ErrorIs(err, device.ErrPartition)

	err = mach.Boot("count")
	assert.NoError(err)
	assert.False(mach.HardDrive.Loaded())
	assert.True(mach.Floppy.Loaded())
	assert.Equal(1, mach.Core.Start)
	assert.Equal(int32(256), mach.Cpu.Register[7])

	assert.NoError(mach.Run(context.Background()))
	assert.Equal(int32(15), mach.Cpu.Register[3])

	mach.HardDrive.Partitions["bad"] = []byte("bogus r1")
	assert.NoError(mach.UnloadProgram())
	err = mach.Boot("bad")
	assert.ErrorIs(err, cpu.ErrInstructionInvalid)
	assert.False(mach.HardDrive.Loaded())
	assert.Equal(1023, mach.Mmu.Free())
}

func TestMachineDrawRegisters(t *testing.T) {
	assert := assert.New(t)

	mach := newMachine(t)
	mach.Cpu.Register[1] = -0x7fffffff // 0x80000001
	mach.Cpu.Register[15] = 0x4

	mach.DrawRegisters(gpu.WHITE, gpu.BLACK)

	assert.Equal(gpu.WHITE, mach.Gpu.Pixel(0, 1))
	assert.Equal(gpu.BLACK, mach.Gpu.Pixel(1, 1))
	assert.Equal(gpu.WHITE, mach.Gpu.Pixel(31, 1))
	assert.Equal(gpu.WHITE, mach.Gpu.Pixel(29, 15))
	assert.Equal(gpu.BLACK, mach.Gpu.Pixel(31, 15))
	for x := range WORD_BITS {
		assert.Equal(gpu.BLACK, mach.Gpu.Pixel(x, 0))
	}
}

func TestMachineNetwork(t *testing.T) {
	assert := assert.New(t)

	alpha := newMachine(t)
	beta := newMachine(t)

	alpha.Network.Connect(beta.Network)
	assert.NoError(alpha.Network.Send([]byte("ping"), beta.Network))
	assert.Equal(1023, alpha.Mmu.Free())

	data, ok := beta.Network.Receive()
	assert.True(ok)
	assert.Equal([]byte("ping"), data)

	err := beta.Network.Send([]byte("pong"), alpha.Network)
	assert.ErrorIs(err, device.ErrNotConnected)
}

func TestMimd(t *testing.T) {
	assert := assert.New(t)

	cfg := config.Default()
	cfg.Cpu.Cores = 2
	mem := mmu.NewMmu(64)

	mimd, err := NewMimd(cfg, mem)
	assert.NoError(err)
	assert.Equal(2, len(mimd.Cores))

	first := assemble(t, countdown...)
	second := assemble(t, ".set r1 2", ".set r2 3", "xor r1 r2 r3", "halt")

	err = mimd.LoadPrograms([]*cpu.Program{first, second, second})
	assert.ErrorIs(err, ErrTooManyPrograms)
	assert.Equal(64, mem.Free())

	err = mimd.LoadPrograms([]*cpu.Program{first, second})
	assert.NoError(err)
	assert.Equal(64-first.Len()-second.Len(), mem.Free())

	c0, c1 := mimd.Cores[0], mimd.Cores[1]
	assert.Equal(0, c0.Start)
	assert.Equal(first.Len(), c1.Start)
	assert.LessOrEqual(c0.End, c1.Start)

	err = mimd.Run(context.Background())
	assert.NoError(err)
	assert.Equal(int32(15), c0.Cpu.Register[3])
	assert.Equal(int32(1), c1.Cpu.Register[3])

	assert.NoError(mimd.UnloadPrograms())
	assert.Equal(64, mem.Free())
}

func TestMimdError(t *testing.T) {
	assert := assert.New(t)

	cfg := config.Default()
	cfg.Cpu.Cores = 3
	cfg.Cpu.MaxTicks = 0
	mem := mmu.NewMmu(64)

	mimd, err := NewMimd(cfg, mem)
	assert.NoError(err)

	spin := assemble(t, "loop: jmp loop")
	bad := assemble(t, ".word 0x9000")

	assert.NoError(mimd.LoadPrograms([]*cpu.Program{spin, bad}))

	err = mimd.Run(context.Background())
	assert.ErrorIs(err, cpu.ErrInvalidOpcode)

	var err_core *ErrCore
	if assert.ErrorAs(err, &err_core) {
		assert.Equal(1, err_core.Core)
	}
}

func TestMimdLoadFailure(t *testing.T) {
	assert := assert.New(t)

	cfg := config.Default()
	cfg.Cpu.Cores = 2
	mem := mmu.NewMmu(4)

	mimd, err := NewMimd(cfg, mem)
	assert.NoError(err)

	small := assemble(t, "add r1 r1 r1", "add r1 r1 r1")
	large := assemble(t, "add r1 r1 r1", "add r1 r1 r1", "add r1 r1 r1")

	err = mimd.LoadPrograms([]*cpu.Program{small, large})
	assert.ErrorIs(err, mmu.ErrOutOfMemory)
	assert.Equal(4, mem.Free())
	assert.Nil(mimd.Cores[0].Program)
}
