package sysinfo

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Describe returns a short host description for info.txt.
func Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CPU: %v\n", cpuid.CPU.BrandName)
	fmt.Fprintf(&sb, "Cores: %v physical, %v logical\n", cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
	fmt.Fprintf(&sb, "AVX2: %v, FMA3: %v, AVX512: %v\n",
		cpuid.CPU.Supports(cpuid.AVX2),
		cpuid.CPU.Supports(cpuid.FMA3),
		cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ))
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(&sb, "Memory: %v MiB total, %v MiB available\n", vm.Total>>20, vm.Available>>20)
	}
	fmt.Fprintf(&sb, "Go: %v %v/%v\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return sb.String()
}

// DefaultReplicas is the number of physical cores, or the logical CPU count when unknown.
func DefaultReplicas() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// ProcessRSS returns the resident memory of the current process in bytes.
func ProcessRSS() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("failed to get process: %w", err)
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("failed to get memory info: %w", err)
	}
	return memInfo.RSS, nil
}
