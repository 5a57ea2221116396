package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/gokernel/abi"
	"github.com/oxidecomputer/gokernel/kernel/testimage"
)

func TestStartupBuildsTaskTableAndPromotesStartAtBoot(t *testing.T) {
	data := testimage.TwoTaskEcho()
	image, err := abi.ParseImage(data, abi.MPUArmV7M)
	require.NoError(t, err)

	mem := make(Memory, 0x21000)
	k, err := Startup(image, mem)
	require.NoError(t, err)

	require.Equal(t, 2, k.TaskCount())
	for i := 0; i < 2; i++ {
		tk := k.Task(i)
		require.Equal(t, Runnable, tk.State.Sched.Kind, "task %d should be Runnable (START_AT_BOOT)", i)
		require.Len(t, tk.Regions, abi.RegionsPerTask, "task %d Regions", i)
	}
}

func TestStartupPopulatesIRQTableEnabled(t *testing.T) {
	b := testimage.NewBuilder()
	code := b.AddRegion(0x0, 0x1000, abi.AttrRead|abi.AttrExecute)
	ram := b.AddRegion(0x20000000, 0x100, abi.AttrRead|abi.AttrWrite)
	b.AddTask([]uint8{code, ram}, 0x0, 0x20000080, 0, abi.FlagStartAtBoot)
	b.AddInterrupt(3, 0, 0x1)
	data := b.Build()

	image, err := abi.ParseImage(data, abi.MPUArmV7M)
	require.NoError(t, err)
	mem := make(Memory, 0x21000)
	k, err := Startup(image, mem)
	require.NoError(t, err)

	require.NoError(t, k.IRQFire(3))
	require.EqualValues(t, 0x1, k.Task(0).Pending, "IRQ should start enabled")
}

func TestStartupTaskNotStartedAtBootIsStopped(t *testing.T) {
	b := testimage.NewBuilder()
	code := b.AddRegion(0x0, 0x1000, abi.AttrRead|abi.AttrExecute)
	ram := b.AddRegion(0x20000000, 0x100, abi.AttrRead|abi.AttrWrite)
	b.AddTask([]uint8{code, ram}, 0x0, 0x20000080, 0, 0)
	data := b.Build()

	image, err := abi.ParseImage(data, abi.MPUArmV7M)
	require.NoError(t, err)
	mem := make(Memory, 0x21000)
	k, err := Startup(image, mem)
	require.NoError(t, err)
	require.Equal(t, Stopped, k.Task(0).State.Sched.Kind, "task without START_AT_BOOT should be Stopped")
}
