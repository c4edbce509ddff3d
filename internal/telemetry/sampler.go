package telemetry

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// ResourceSample — снимок потребления ресурсов процессом.
type ResourceSample struct {
	// CPUPercent — загрузка CPU процессом, в процентах.
	CPUPercent float64

	// MemoryPercent — доля используемой памяти, в процентах.
	MemoryPercent float64
}

// Sampler возвращает текущее потребление ресурсов.
// Используется планировщиком для обновления нагрузки локального узла.
type Sampler interface {
	Sample() (ResourceSample, error)
}

// ProcessSampler — Sampler на основе gopsutil для текущего процесса.
type ProcessSampler struct {
	proc *process.Process
}

// NewProcessSampler создаёт сэмплер для текущего процесса.
func NewProcessSampler() (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open process handle: %w", err)
	}
	return &ProcessSampler{proc: proc}, nil
}

// Sample возвращает текущие CPU и память процесса.
func (s *ProcessSampler) Sample() (ResourceSample, error) {
	cpu, err := s.proc.CPUPercent()
	if err != nil {
		return ResourceSample{}, fmt.Errorf("sample cpu: %w", err)
	}

	mem, err := s.proc.MemoryPercent()
	if err != nil {
		return ResourceSample{}, fmt.Errorf("sample memory: %w", err)
	}

	return ResourceSample{
		CPUPercent:    cpu,
		MemoryPercent: float64(mem),
	}, nil
}
