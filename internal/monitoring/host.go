// Package monitoring reports host capabilities and runtime resource usage
// for long running trainer and server processes.
package monitoring

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/rs/zerolog"
)

// HostInfo describes the machine the process runs on
type HostInfo struct {
	Brand         string   `json:"brand"`
	Vendor        string   `json:"vendor"`
	PhysicalCores int      `json:"physical_cores"`
	LogicalCores  int      `json:"logical_cores"`
	GOMAXPROCS    int      `json:"gomaxprocs"`
	Features      []string `json:"features"`
}

// simdFeatures are the extensions that matter for dense float math
var simdFeatures = []struct {
	name string
	id   cpuid.FeatureID
}{
	{"sse4.2", cpuid.SSE42},
	{"avx", cpuid.AVX},
	{"avx2", cpuid.AVX2},
	{"fma3", cpuid.FMA3},
	{"avx512f", cpuid.AVX512F},
	{"avx512dq", cpuid.AVX512DQ},
	{"asimd", cpuid.ASIMD},
}

// DetectHost reads CPU identification for the current machine
func DetectHost() HostInfo {
	info := HostInfo{
		Brand:         cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		Features:      []string{},
	}
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f.id) {
			info.Features = append(info.Features, f.name)
		}
	}
	return info
}

// LogHost writes the host description at info level
func LogHost(logger zerolog.Logger) HostInfo {
	info := DetectHost()
	logger.Info().
		Str("cpu", info.Brand).
		Str("vendor", info.Vendor).
		Int("physical_cores", info.PhysicalCores).
		Int("logical_cores", info.LogicalCores).
		Int("gomaxprocs", info.GOMAXPROCS).
		Strs("simd", info.Features).
		Msg("Host capabilities")
	return info
}
