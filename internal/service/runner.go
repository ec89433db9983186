package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/netshellpro/netshellpro/internal/model"
)

// DeviceOutcome 单台设备的执行结果
type DeviceOutcome struct {
	Device model.Device
	Result *ExecutionResult
	Err    error
}

// Runner 多设备并行执行，每台设备独立获取会话
type Runner struct {
	orch       *Orchestrator
	concurrent int
}

// NewRunner 创建并行执行器，concurrent 为同时执行的设备数
func NewRunner(orch *Orchestrator, concurrent int) *Runner {
	if concurrent < 1 {
		concurrent = 1
	}
	return &Runner{orch: orch, concurrent: concurrent}
}

// ExecuteAll 在所有设备上执行同一组命令，结果顺序与 devices 一致；单台失败不影响其他设备
func (r *Runner) ExecuteAll(ctx context.Context, devices []model.Device, commands []string) []DeviceOutcome {
	outcomes := make([]DeviceOutcome, len(devices))
	var g errgroup.Group
	g.SetLimit(r.concurrent)
	for i, d := range devices {
		i, d := i, d
		g.Go(func() error {
			res, err := r.orch.Execute(ctx, d, commands)
			outcomes[i] = DeviceOutcome{Device: d, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
